package broker

import (
	"context"
	"os"
	"testing"

	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

// Set VALKEY_TEST_ADDR (e.g. 127.0.0.1:6379) to run against a real server.
func TestValkeyNotifier(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}
	req := require.New(t)
	ctx := context.Background()

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	req.NoError(err)
	defer client.Close()

	n := NewValkeyNotifier(client, logging.Discard())
	topic := ConversationTopic(uuid.NewString())

	l, err := n.Listen(ctx, topic)
	req.NoError(err)
	req.NoError(n.Publish(ctx, topic))
	req.True(received(l.C()))

	l.Close()
	l.Close()
	_, ok := <-l.C()
	req.False(ok)
}
