package storage

import "context"

type NoopStorage struct {
}

func (s *NoopStorage) MakeFlowchart(ctx context.Context, fid string) error {
	return nil
}

func (s *NoopStorage) RemFlowchart(ctx context.Context, fid string) error {
	return nil
}

func (s *NoopStorage) GetRuns(ctx context.Context, fid string) ([]*RunRecord, error) {
	return nil, nil
}

func (s *NoopStorage) WriteRuns(ctx context.Context, fid string, rs []*RunRecord) error {
	return nil
}

func (s *NoopStorage) Open(ctx context.Context) error {
	return nil
}

func (s *NoopStorage) Close(ctx context.Context) error {
	return nil
}
