package reports

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/domain/rules"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type FileRequest struct {
	ReporterUsername string
	ReportedUsername string
	ItemType         enums.ContentType
	// ItemID is ignored for account reports; the reported user is the item.
	ItemID       uuid.UUID
	Reason       enums.ReportReason
	ReasonUserID *uuid.UUID
}

// File stores a new open report. Reports are normally filed by the user
// facing application; operators use this path for imports and tests.
func (s *Service) File(ctx context.Context, in FileRequest) (model.Report, error) {
	if _, ok := rules.SeverityOf(in.Reason); !ok {
		return model.Report{}, faults.Validation("unknown report reason %q", in.Reason)
	}
	if _, ok := enums.ParseContentType(string(in.ItemType)); !ok {
		return model.Report{}, faults.Validation("unknown item type %q", in.ItemType)
	}

	var out model.Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		reporter, err := tx.Users().GetByUsername(ctx, in.ReporterUsername)
		if err != nil {
			return err
		}
		reported, err := tx.Users().GetByUsername(ctx, in.ReportedUsername)
		if err != nil {
			return err
		}
		if reporter.ID == reported.ID {
			return faults.Validation("users cannot report themselves")
		}

		itemID := in.ItemID
		switch {
		case in.ItemType == enums.ContentTypeAccount:
			itemID = reported.ID
		case in.ItemType.Stored():
			content, err := tx.Contents().Get(ctx, in.ItemType, in.ItemID)
			if err != nil {
				return err
			}
			if content.OwnerUserID != reported.ID {
				return faults.Validation("%s %s does not belong to %s", in.ItemType, in.ItemID, reported.Username)
			}
		case itemID == uuid.Nil:
			return faults.Validation("item id is required")
		}

		out, err = tx.Reports().Create(ctx, model.Report{
			ReporterUserID:   reporter.ID,
			ReportedUserID:   reported.ID,
			ReportedItemID:   itemID,
			ReportedItemType: in.ItemType,
			Reason:           enums.NormalizeReportReason(string(in.Reason)),
			ReasonUserID:     in.ReasonUserID,
			Status:           enums.ReportStatusOpen,
		})
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Report{}, err
	}

	s.logger.Info("report filed",
		zap.Int64("case_number", out.CaseNumber),
		zap.String("reported_user_id", out.ReportedUserID.String()),
		zap.String("reason", string(out.Reason)),
	)
	return out, nil
}
