package api

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/diogo/streamchat/internal/models"
)

// MockClient is a mock implementation of ClientInterface for testing
type MockClient struct {
	// Mock return values
	InitErr       error
	Model         models.Model
	IsClosedVal   bool
	SessionVal    *Session
	StreamBody    string
	StreamErr     error
	StreamFunc    func(ctx context.Context, path, prompt string) (io.ReadCloser, error)
	FileTypesVal  []string
	FileTypesErr  error
	UploadVal     string
	UploadErr     error
	InstructVal   string
	InstructErr   error
	SessionCmdVal string
	SessionCmdErr error

	mu sync.Mutex
	// Call counters/recorders
	InitCalled   bool
	CloseCalled  bool
	StreamCalls  []StreamCall
	UploadPaths  []string
	Instructions []string
	SessionCalls []models.SessionAction
}

// StreamCall records one OpenStream call
type StreamCall struct {
	Path   string
	Prompt string
}

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalled = true
	return m.InitErr
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	m.IsClosedVal = true
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsClosedVal
}

func (m *MockClient) GetModel() models.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockClient) SetModel(model models.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

func (m *MockClient) Session() *Session {
	return m.SessionVal
}

func (m *MockClient) OpenStream(ctx context.Context, path, prompt string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, StreamCall{Path: path, Prompt: prompt})
	fn := m.StreamFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, path, prompt)
	}
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return io.NopCloser(strings.NewReader(m.StreamBody)), nil
}

func (m *MockClient) SupportedFileTypes(ctx context.Context) ([]string, error) {
	return m.FileTypesVal, m.FileTypesErr
}

func (m *MockClient) Upload(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadPaths = append(m.UploadPaths, path)
	return m.UploadVal, m.UploadErr
}

func (m *MockClient) Instruct(ctx context.Context, instruction string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Instructions = append(m.Instructions, instruction)
	return m.InstructVal, m.InstructErr
}

func (m *MockClient) SessionCommand(ctx context.Context, action models.SessionAction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionCalls = append(m.SessionCalls, action)
	return m.SessionCmdVal, m.SessionCmdErr
}

// Calls returns a copy of the recorded OpenStream calls
func (m *MockClient) Calls() []StreamCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StreamCall(nil), m.StreamCalls...)
}
