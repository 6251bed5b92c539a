package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBridge_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	bridge := NewRedisBridge(db, "site:", nil)

	env := Envelope{Origin: "a", Event: "membersUpdated", Data: json.RawMessage(`[]`), At: 1700000000}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	mock.ExpectPublish("site:events:membersUpdated", body).SetVal(1)

	require.NoError(t, bridge.Publish(context.Background(), env))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBridge_Channel(t *testing.T) {
	db, _ := redismock.NewClientMock()
	bridge := NewRedisBridge(db, "site:", nil)
	assert.Equal(t, "site:events:formsUpdated", bridge.Channel("formsUpdated"))
}
