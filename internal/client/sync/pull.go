package sync

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/booksync/internal/codec"
	"github.com/iudanet/booksync/internal/syncerr"
	"github.com/iudanet/booksync/pkg/api"
)

// PullResult counts what a pull did.
type PullResult struct {
	Cursor   string
	Pages    int
	Applied  int
	Deferred int // сущности с неотправленными локальными изменениями
}

// Pull downloads server changes page by page from the stored cursor and applies them to the
// replica. The cursor is saved after every applied page, so an interrupted pull resumes there.
func (s *Service) Pull(ctx context.Context) (*PullResult, error) {
	cursor, err := s.store.GetCursor(ctx)
	if err != nil {
		return nil, err
	}
	result := &PullResult{Cursor: cursor}

	for {
		page, err := s.download(ctx, cursor)
		if err != nil {
			return result, err
		}
		if err := s.checkPage(page); err != nil {
			return result, err
		}

		for _, ent := range page.Package.Entities() {
			unsynced, err := s.store.HasUnsyncedChange(ctx, ent.EntityType, ent.LocalID)
			if err != nil {
				return result, err
			}
			// локальная правка уйдет на сервер и там станет конфликтом
			if unsynced {
				result.Deferred++
				s.logger.Debug("Server change deferred", "entity_type", ent.EntityType, "local_id", ent.LocalID)
				continue
			}
			if err := s.applyServerEntity(ctx, &ent); err != nil {
				return result, fmt.Errorf("failed to apply %s %s: %w", ent.EntityType, ent.LocalID, err)
			}
			result.Applied++
		}

		if err := s.store.SaveCursor(ctx, page.NextCursor); err != nil {
			return result, fmt.Errorf("failed to save cursor: %w", err)
		}
		result.Pages++
		stalled := page.NextCursor == cursor
		cursor = page.NextCursor
		result.Cursor = cursor

		if !page.HasMore || stalled {
			break
		}
	}

	s.logger.Info("Pull completed", "pages", result.Pages, "applied", result.Applied, "deferred", result.Deferred)
	return result, nil
}

// download fetches one page, retrying transport failures with exponential backoff.
func (s *Service) download(ctx context.Context, cursor string) (*api.DownloadResponse, error) {
	backoff := retry.WithMaxRetries(s.cfg.PullRetries, retry.NewExponential(s.cfg.PullRetryBase))

	var page *api.DownloadResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := s.api.Download(ctx, api.DownloadRequest{
			TenantID:    s.cfg.TenantID,
			SinceCursor: cursor,
			EntityTypes: s.cfg.EntityTypes,
			MaxEntities: s.cfg.PageSize,
			// удаленные записи нужны, чтобы удалить их локально
			IncludeDeleted: true,
		})
		if err != nil {
			if syncerr.IsTransport(err) {
				s.logger.Warn("Download failed, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		page = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// checkPage rejects a page whose package is missing, tampered with or addressed to another tenant.
func (s *Service) checkPage(page *api.DownloadResponse) error {
	if page.Package == nil {
		return syncerr.NewValidationError("download page carries no package")
	}
	if !codec.Verify(page.Package) {
		return syncerr.NewValidationError("download package checksum mismatch")
	}
	if page.Package.TenantID != s.cfg.TenantID {
		return &syncerr.AuthorizationError{Reason: "download package addressed to another tenant"}
	}
	return nil
}
