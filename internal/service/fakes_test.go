package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"lms_backend/internal/model"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	calls    []int64
	orders   map[string]OrderHandle
	err      error
	fetchErr error
}

// CreateOrder 第一笔订单固定为 order_test，之后依次编号
func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, amount)
	if g.err != nil {
		return nil, g.err
	}
	if g.orders == nil {
		g.orders = make(map[string]OrderHandle)
	}
	id := "order_test"
	if n := len(g.orders); n > 0 {
		id = fmt.Sprintf("order_test_%d", n+1)
	}
	order := OrderHandle{ID: id, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}
	g.orders[id] = order
	return &order, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	order, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return &order, nil
}

type memoryOrderCache struct {
	mu     sync.Mutex
	orders map[string]model.PendingOrder
}

func newMemoryOrderCache() *memoryOrderCache {
	return &memoryOrderCache{orders: make(map[string]model.PendingOrder)}
}

func (c *memoryOrderCache) Put(ctx context.Context, order *model.PendingOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.OrderID] = *order
	return nil
}

func (c *memoryOrderCache) Get(ctx context.Context, orderID string) (*model.PendingOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *memoryOrderCache) Delete(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, orderID)
	return nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, data CertificateData) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("certificate:" + data.CertificateID + ":" + data.StudentName), nil
}

func (r *fakeRenderer) ContentType() string { return "application/pdf" }

func (r *fakeRenderer) Extension() string { return ".pdf" }

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	s.objects[filename] = buf.Bytes()
	return "https://files.example.com/" + filename, nil
}

func (s *memoryStore) UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.objects[filename] = []byte(localPath)
	return "https://files.example.com/" + filename, nil
}

func (s *memoryStore) Delete(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[filename]; !ok {
		return errors.New("object not found")
	}
	delete(s.objects, filename)
	s.deleted = append(s.deleted, filename)
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []MailMessage
}

func (m *recordingMailer) Send(ctx context.Context, msg MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

// newFileHeader 构造一个经过 multipart 解析的上传文件
func newFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}
