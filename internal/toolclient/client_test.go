package toolclient

import (
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"

	"docchat/internal/domain"
)

func TestUnconnectedClientRejectsCalls(t *testing.T) {
	c := New(Config{}, nil)

	_, err := c.Invoke("snowflake_list_tables", nil)
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = c.ReadResource("docs://readme")
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = c.GetPrompt("system_prompt", nil)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestNewAppliesDefaultTimeouts(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, 10*time.Second, c.cfg.ConnectTimeout)
	assert.Equal(t, 120*time.Second, c.cfg.CallTimeout)
}

func TestInvokeHonorsCallDeadline(t *testing.T) {
	c := New(Config{CallTimeout: 50 * time.Millisecond}, nil)
	// session present, but no worker goroutine drains the request channel
	c.mcp = &client.Client{}

	start := time.Now()
	_, err := c.Invoke("snowflake_query_rag", nil)
	assert.ErrorIs(t, err, domain.ErrCallTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCloseOnUnconnectedClientIsNoop(t *testing.T) {
	c := New(Config{}, nil)
	assert.NoError(t, c.Close())
	assert.False(t, c.Connected())
}
