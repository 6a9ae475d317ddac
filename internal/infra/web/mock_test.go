//go:build !integration

package web

import (
	"context"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type mockJobUC struct {
	SubmitFunc func(ctx context.Context, req usecase.SubmitRequest) (*model.Job, error)
	jobs       map[string]*model.Job
	last       usecase.SubmitRequest
}

func (m *mockJobUC) Submit(ctx context.Context, req usecase.SubmitRequest) (*model.Job, error) {
	m.last = req
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return &model.Job{ID: "job-1", ClientID: req.ClientID, Phase: model.JobPhaseSubmitted}, nil
}

func (m *mockJobUC) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	if j, ok := m.jobs[jobID]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobUC) Summary(ctx context.Context, limit int) (*usecase.JobSummary, error) {
	s := &usecase.JobSummary{Counts: map[model.JobPhase]int{}}
	for _, j := range m.jobs {
		s.Counts[j.Phase]++
		s.Recent = append(s.Recent, j)
	}
	return s, nil
}

func (m *mockJobUC) ListByPhase(ctx context.Context, phase model.JobPhase, limit int) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range m.jobs {
		if j.Phase == phase {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockAdmission struct {
	deny bool
}

func (m *mockAdmission) TryAcquire(clientID string) usecase.Decision {
	if m.deny {
		return usecase.Decision{Allowed: false, RetryAfterSeconds: 6}
	}
	return usecase.Decision{Allowed: true}
}

type mockNotifier struct {
	usecase.NotificationUseCase
	records   []*model.DeliveryRecord
	replayErr error
	replayed  []string
}

func (m *mockNotifier) ListDeadLetters(ctx context.Context) ([]*model.DeliveryRecord, error) {
	return m.records, nil
}

func (m *mockNotifier) Replay(ctx context.Context, jobID string) error {
	m.replayed = append(m.replayed, jobID)
	return m.replayErr
}
