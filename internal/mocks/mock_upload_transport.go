package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockUploadTransport is a testify mock satisfying files.UploadTransport.
type MockUploadTransport struct {
	mock.Mock
}

func (m *MockUploadTransport) UploadFiles(ctx context.Context, endpoint, folder, elementID, token string) error {
	args := m.Called(ctx, endpoint, folder, elementID, token)
	return args.Error(0)
}

func (m *MockUploadTransport) SetElementAttribute(ctx context.Context, elementID, name, value string) error {
	args := m.Called(ctx, elementID, name, value)
	return args.Error(0)
}
