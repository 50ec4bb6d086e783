package mocks

import (
	"context"

	"soup-server/internal/ai"

	"github.com/stretchr/testify/mock"
)

// MockJudgeClient is a mock type for the JudgeClient type
type MockJudgeClient struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, systemPrompt, userContent
func (_m *MockJudgeClient) Complete(ctx context.Context, systemPrompt string, userContent string) (string, error) {
	ret := _m.Called(ctx, systemPrompt, userContent)

	var r0 string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}
	return r0, ret.Error(1)
}

var _ ai.JudgeClient = (*MockJudgeClient)(nil)
