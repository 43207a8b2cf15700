package inspect

import (
	"context"
	"log"

	"epubinspect/internal/audit"
	"epubinspect/internal/epub"
	"epubinspect/internal/llm"
	"epubinspect/internal/workpool"
)

// Service runs the start-point use case on top of the shared pipeline.
type Service struct {
	pipeline *Pipeline
	suggest  llm.Suggester
	detector llm.Detector
	recorder audit.Recorder
	analyze  *workpool.Gate
}

func NewService(pipeline *Pipeline, suggest llm.Suggester, recorder audit.Recorder, analyze *workpool.Gate) *Service {
	return &Service{
		pipeline: pipeline,
		suggest:  suggest,
		recorder: recorder,
		analyze:  analyze,
	}
}

// FindStartPoint unlocks the book, analyzes its structure, and asks the
// model where the main text begins. The audit event opened by the pipeline
// is finalized here with SUCCESS or FAILURE. The decrypted buffer is scoped
// to this call and dropped before returning.
func (s *Service) FindStartPoint(ctx context.Context, req Request) (llm.Decision, error) {
	decrypted, ev, err := s.pipeline.Run(ctx, req, "find_start_point")
	if err != nil {
		return llm.Decision{}, err
	}

	decision, err := s.analyzeAndDecide(ctx, req, decrypted)
	decrypted = nil
	if err != nil {
		ev.Fail(err.Error())
		s.finalize(ctx, ev)
		return llm.Decision{}, err
	}

	ev.Succeed(ev.DRMType)
	s.finalize(ctx, ev)
	return decision, nil
}

func (s *Service) analyzeAndDecide(ctx context.Context, req Request, decrypted []byte) (llm.Decision, error) {
	var analysis *epub.Analysis
	err := s.analyze.Run(ctx, func() error {
		var analyzeErr error
		analysis, analyzeErr = epub.Analyze(decrypted)
		return analyzeErr
	})
	if err != nil {
		return llm.Decision{}, err
	}

	candidate, err := s.suggest.Suggest(ctx, llm.BuildInput(*analysis, req.UseFullToc))
	if err != nil {
		return llm.Decision{}, err
	}
	return s.detector.Decide(candidate)
}

func (s *Service) finalize(ctx context.Context, ev audit.Event) {
	if err := s.recorder.Update(ctx, ev); err != nil {
		log.Printf("audit update failed: event=%s err=%v", ev.EventID, err)
	}
}
