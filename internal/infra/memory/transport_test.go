package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/domain"
)

type received struct {
	from string
	msg  domain.Message
}

func TestNetworkDeliveryAndRoster(t *testing.T) {
	network := NewNetwork(zerolog.Nop())
	host, err := network.Listen("ABC123")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer host.Close()

	inbound := make(chan received, 4)
	rosters := make(chan []string, 4)
	host.OnMessage(func(from string, msg domain.Message) { inbound <- received{from, msg} })
	host.OnRosterChange(func(r []string) { rosters <- r })

	player, err := network.Dial("ABC123")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if r := waitRoster(t, rosters); len(r) != 1 || r[0] != player.ID() {
		t.Fatalf("expected roster with player, got %v", r)
	}
	if got := player.Connections(); len(got) != 1 || got[0] != "ABC123" {
		t.Fatalf("player should see host, got %v", got)
	}

	if err := player.Send("ABC123", domain.JoinMessage("Alice")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-inbound:
		if got.from != player.ID() || got.msg.Type != domain.MessagePlayerJoin || got.msg.Join.Name != "Alice" {
			t.Fatalf("unexpected delivery %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}

	updates := make(chan domain.Message, 1)
	player.OnMessage(func(_ string, msg domain.Message) { updates <- msg })
	state := domain.NewGameState()
	state.Seq = 7
	host.Broadcast(domain.StateUpdate(state))
	select {
	case msg := <-updates:
		if msg.State == nil || msg.State.Seq != 7 {
			t.Fatalf("unexpected broadcast %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("broadcast not delivered")
	}

	player.Close()
	if r := waitRoster(t, rosters); len(r) != 0 {
		t.Fatalf("expected empty roster after close, got %v", r)
	}
	if err := host.Send(player.ID(), domain.StateUpdate(state)); err != nil {
		t.Fatalf("send to closed peer should be dropped, got %v", err)
	}
	if err := player.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestNetworkErrors(t *testing.T) {
	network := NewNetwork(zerolog.Nop())
	if _, err := network.Dial("NOPE00"); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	host, err := network.Listen("ABC123")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if _, err := network.Listen("ABC123"); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	host.Close()
	if _, err := network.Dial("ABC123"); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("closed host should not accept, got %v", err)
	}
}

func TestRosterChangeSurvivesFullInbox(t *testing.T) {
	network := NewNetwork(zerolog.Nop())
	host, err := network.Listen("ABC123")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer host.Close()

	release := make(chan struct{})
	rosters := make(chan []string, 8)
	host.OnMessage(func(string, domain.Message) { <-release })
	host.OnRosterChange(func(r []string) { rosters <- r })

	player, err := network.Dial("ABC123")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if r := waitRoster(t, rosters); len(r) != 1 {
		t.Fatalf("expected player in roster, got %v", r)
	}

	// the first message blocks the host dispatcher, the rest overflow its inbox
	for i := 0; i < inboxSize+50; i++ {
		if err := player.Send("ABC123", domain.JoinMessage("Alice")); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	player.Close()
	close(release)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case r := <-rosters:
			if len(r) == 0 {
				return
			}
		case <-timeout:
			t.Fatalf("host never observed the disconnect, live roster %v", host.Connections())
		}
	}
}

func waitRoster(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatalf("no roster change")
		return nil
	}
}
