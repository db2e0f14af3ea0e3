package appeals

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type FileRequest struct {
	Username         string
	ReportCaseNumber int64
	ContentType      enums.ContentType
	// ContentID is ignored for account appeals.
	ContentID uuid.UUID
	Detail    string
}

// File stores a new open appeal by the sanctioned user against a resolved
// report. Only one pending appeal per content is accepted.
func (s *Service) File(ctx context.Context, in FileRequest) (model.Appeal, error) {
	if _, ok := enums.ParseContentType(string(in.ContentType)); !ok || in.ContentType == enums.ContentTypeMessage {
		return model.Appeal{}, faults.Validation("appeals accept post, comment or account content")
	}

	var out model.Appeal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		user, err := tx.Users().GetByUsername(ctx, in.Username)
		if err != nil {
			return err
		}
		report, err := tx.Reports().GetByCase(ctx, in.ReportCaseNumber, false)
		if err != nil {
			return err
		}
		if report.ReportedUserID != user.ID {
			return faults.Forbidden("report %d is not about %s", in.ReportCaseNumber, user.Username)
		}
		if !report.Status.Resolved() {
			return faults.Conflict("report %d is %s and cannot be appealed", in.ReportCaseNumber, report.Status)
		}

		contentID := in.ContentID
		if in.ContentType == enums.ContentTypeAccount {
			contentID = user.ID
		} else {
			content, err := tx.Contents().Get(ctx, in.ContentType, in.ContentID)
			if err != nil {
				return err
			}
			if content.OwnerUserID != user.ID {
				return faults.Validation("%s %s does not belong to %s", in.ContentType, in.ContentID, user.Username)
			}
			if content.IsBanFinal {
				return faults.Conflict("%s %s ban is final", in.ContentType, in.ContentID)
			}
		}

		pending, err := s.orch.HasPendingAppeal(ctx, tx, in.ContentType, contentID)
		if err != nil {
			return err
		}
		if pending {
			return faults.Conflict("an appeal for %s %s is already pending", in.ContentType, contentID)
		}

		out, err = tx.Appeals().Create(ctx, model.Appeal{
			UserID:      user.ID,
			ReportID:    report.ID,
			ContentID:   contentID,
			ContentType: in.ContentType,
			Detail:      strings.TrimSpace(in.Detail),
			Status:      enums.AppealStatusOpen,
		})
		if err != nil {
			return fmt.Errorf("create appeal: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Appeal{}, err
	}

	s.logger.Info("appeal filed",
		zap.Int64("case_number", out.CaseNumber),
		zap.String("user_id", out.UserID.String()),
		zap.String("content_type", string(out.ContentType)),
	)
	return out, nil
}
