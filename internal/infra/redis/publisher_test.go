package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/domain"
)

func TestPublisherSendsToSessionChannel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	pub := NewPublisher(client, "", zerolog.Nop())
	if pub.Channel("S1") != "trivia:events:S1" {
		t.Fatalf("unexpected channel %q", pub.Channel("S1"))
	}

	sub := client.Subscribe(ctx, pub.Channel("S1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub.Publish(ctx, "S1", domain.Message{Type: domain.TypeAnswerReceived, Payload: domain.AnswerReceivedPayload{
		SessionID: "S1", Round: 1, AnsweredCount: 1, TotalPlayers: 2,
	}})

	select {
	case msg := <-sub.Channel():
		var got struct {
			Type    string                       `json:"type"`
			Payload domain.AnswerReceivedPayload `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != domain.TypeAnswerReceived || got.Payload.AnsweredCount != 1 {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for published event")
	}
}

func TestPublisherIgnoresRedisFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	NewPublisher(client, "x", zerolog.Nop()).Publish(context.Background(), "S1", domain.Message{Type: domain.TypePlayerLeft})
}
