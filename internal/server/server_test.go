package server

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{router: gin.New(), logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation drains and returns cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}
