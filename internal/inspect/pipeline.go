// Package inspect orchestrates the processing of one protected book: fetch
// from object storage, unlock, analyze, and decide where the main text
// starts. Decrypted bytes live only for the duration of a request.
package inspect

import (
	"context"
	"fmt"
	"log"

	"epubinspect/internal/audit"
	"epubinspect/internal/drm"
	"epubinspect/internal/license"
	"epubinspect/internal/workpool"
)

// Fetcher retrieves a full remote object.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Request identifies one book to process.
type Request struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	ItemID     string `json:"item_id"`
	UseFullToc bool   `json:"use_full_toc"`
}

// Pipeline is the shared fetch-and-unlock stage. It emits the audit event
// every downstream use case finalizes.
type Pipeline struct {
	fetcher  Fetcher
	keys     license.Resolver
	recorder audit.Recorder
	decrypt  *workpool.Gate
}

func NewPipeline(fetcher Fetcher, keys license.Resolver, recorder audit.Recorder, decrypt *workpool.Gate) *Pipeline {
	return &Pipeline{fetcher: fetcher, keys: keys, recorder: recorder, decrypt: decrypt}
}

// Run fetches and unlocks the container. On success the returned event is in
// PROCESSING state and the caller must finalize it. On failure a terminal
// FAILURE event has already been recorded and the typed error is returned.
func (p *Pipeline) Run(ctx context.Context, req Request, reason string) ([]byte, audit.Event, error) {
	ev := audit.NewEvent(req.ItemID, req.Bucket, req.Key, reason)

	decrypted, drmType, err := p.unlock(ctx, req)
	if err != nil {
		ev.Fail(err.Error())
		if auditErr := p.recorder.Create(ctx, ev); auditErr != nil {
			log.Printf("audit create failed: event=%s err=%v", ev.EventID, auditErr)
		}
		return nil, audit.Event{}, err
	}

	ev.DRMType = drmType
	if err := p.recorder.Create(ctx, ev); err != nil {
		log.Printf("audit create failed: event=%s err=%v", ev.EventID, err)
	}
	return decrypted, ev, nil
}

func (p *Pipeline) unlock(ctx context.Context, req Request) ([]byte, string, error) {
	encrypted, err := p.fetcher.Fetch(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, "", err
	}

	licenseKey, err := p.keys.Key(ctx, req.ItemID)
	if err != nil {
		return nil, "", err
	}

	drmType := drm.TypeNone
	if drm.IsProtected(encrypted) {
		drmType = drm.TypeEntryCipher
	}

	var decrypted []byte
	err = p.decrypt.Run(ctx, func() error {
		var rewriteErr error
		decrypted, rewriteErr = drm.Rewrite(encrypted, licenseKey)
		return rewriteErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("unlock %s/%s: %w", req.Bucket, req.Key, err)
	}
	log.Printf("container unlocked: item=%s drm=%s bytes=%d", req.ItemID, drmType, len(decrypted))
	return decrypted, drmType, nil
}
