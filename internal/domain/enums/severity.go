package enums

type Severity string

const (
	SeverityMinimal                  Severity = "MIN"
	SeverityModerate                 Severity = "MOD"
	SeverityModeratelySevere         Severity = "MSV"
	SeveritySevere                   Severity = "SEV"
	SeverityHighlySevere             Severity = "HSV"
	SeveritySeverelyNegative         Severity = "SNG"
	SeverityContentModeratorDecision Severity = "CMD"
)
