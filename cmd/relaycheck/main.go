package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Damas/internal/netplay"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"github.com/valyala/fasthttp"
)

func main() {
	wsURL := strings.TrimSpace(os.Getenv("RELAY_URL"))
	if wsURL == "" {
		wsURL = "ws://localhost:3000/"
	}
	httpURL := "http" + strings.TrimPrefix(wsURL, "ws")

	status, body, err := fasthttp.GetTimeout(nil, httpURL, 5*time.Second)
	if err != nil {
		log.Fatalf("banner error: %v", err)
	}
	log.Printf("banner status=%d text=%q", status, strings.TrimSpace(string(body)))

	client := netplay.NewClient(wsURL, netplay.WithPingInterval(0))
	client.OnStateChange(func(state netplay.ConnState) {
		log.Printf("WS state: %s", state)
	})
	replies := make(chan protocol.Message, 4)
	client.OnMessage(func(msg protocol.Message) { replies <- msg })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer func() { _ = client.Close(context.Background()) }()

	code, err := protocol.GenerateRoomCode()
	if err != nil {
		log.Fatalf("room code: %v", err)
	}
	if err := client.Send(ctx, protocol.CreateRoom(code, "relaycheck")); err != nil {
		log.Fatalf("send create_room: %v", err)
	}
	select {
	case msg := <-replies:
		log.Printf("reply type=%s room=%s message=%q", msg.Type, msg.RoomCode, msg.Message)
	case <-ctx.Done():
		log.Fatalf("no reply from relay: %v", ctx.Err())
	}
}
