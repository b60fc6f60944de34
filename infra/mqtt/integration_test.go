//go:build integration

package mqtt_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/infra/mqtt"
)

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	conf := "listener 1883\nallow_anonymous true\npersistence false\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(ctx) })
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestTaskRoundTripWithBroker(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	broker := startMosquitto(ctx, t)

	svc, err := mqtt.NewPahoClient(mqtt.Config{Broker: broker, ClientID: "pvopt-it"})
	if err != nil {
		t.Fatalf("service client: %v", err)
	}
	defer svc.Close()

	caller := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("caller"))
	if tok := caller.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("caller connect: %v", tok.Error())
	}
	defer caller.Disconnect(100)

	results := make(chan dto.ResultMessage, 1)
	if tok := caller.Subscribe("pvopt/results", 1, func(_ paho.Client, m paho.Message) {
		var msg dto.ResultMessage
		if err := json.Unmarshal(m.Payload(), &msg); err == nil {
			results <- msg
		}
	}); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	payload := []byte(`{"key":"it-1","task":{"id":11,"intervals":[1,1,1]}}`)
	if tok := caller.Publish("pvopt/tasks", 1, false, payload); tok.Wait() && tok.Error() != nil {
		t.Fatalf("publish: %v", tok.Error())
	}

	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d, err := svc.Receive(rctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if d.Key != "it-1" || d.ID() != 11 {
		t.Fatalf("unexpected delivery %s/%d", d.Key, d.ID())
	}
	if err := svc.Dispatch(rctx, d.Key, model.NotFound(d.ID(), "test")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}

	select {
	case msg := <-results:
		if msg.Key != "it-1" || msg.Result.ID != 11 {
			t.Fatalf("unexpected result %+v", msg)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no result received")
	}
}
