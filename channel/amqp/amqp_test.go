package amqp_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ory/dockertest/v3"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/peerlink/peerrpc/channel/amqp"
	tests "github.com/peerlink/peerrpc/internal/test"
)

/*
  Needs docker. The daemon address is taken from the DOCKER_HOST
  environment variable; without a reachable daemon the test is skipped.
*/

type TestContext struct {
	amqpURL string

	dockerPool *dockertest.Pool
	dbRes      *dockertest.Resource
}

func getAddr(dockerEndpoint, port string) string {
	dockerEndpoint = strings.Replace(dockerEndpoint, "tcp://", "", 1)
	host := strings.Split(dockerEndpoint, ":")[0]
	if strings.Contains(dockerEndpoint, "unix:") || strings.Contains(dockerEndpoint, "http://localhost:") {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%s", host, port)
}

func (tc *TestContext) SetUp(t testing.TB) {
	t.Log("SetUp")

	p, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %s", err)
	}
	tc.dockerPool = p

	r, err := tc.dockerPool.Run("rabbitmq", "3.9-alpine", nil)
	if err != nil {
		t.Skipf("could not start rabbitmq container: %s", err)
	}
	tc.dbRes = r

	addr := getAddr(tc.dockerPool.Client.Endpoint(), tc.dbRes.GetPort("5672/tcp"))
	tc.amqpURL = fmt.Sprintf("amqp://guest:guest@%s/", addr)
	if err := tc.dockerPool.Retry(func() error {
		conn, err := amqp091.Dial(tc.amqpURL)
		if err != nil {
			return err
		}
		return conn.Close()
	}); err != nil {
		t.Fatalf("could not connect to rabbitmq: %s", err)
	}
}

func (tc *TestContext) TearDown(t testing.TB) {
	t.Log("TearDown")
	if err := tc.dockerPool.Purge(tc.dbRes); err != nil {
		t.Fatalf("could not purge resource: %s", err)
	}
	tc.dbRes = nil
}

func TestAmqpChannel(t *testing.T) {
	tc := TestContext{}
	tc.SetUp(t)
	defer tc.TearDown(t)

	newPair := func(t *testing.T, link string, workers int) (*amqp.Channel, *amqp.Channel) {
		a, err := amqp.New(amqp.Options{
			URL:      tc.amqpURL,
			Exchange: "peerrpc." + link,
			SendKey:  "a2b",
			RecvKey:  "b2a",
			Workers:  workers,
		})
		if err != nil {
			t.Fatal(err)
		}
		b, err := amqp.New(amqp.Options{
			URL:      tc.amqpURL,
			Exchange: "peerrpc." + link,
			SendKey:  "b2a",
			RecvKey:  "a2b",
			Workers:  workers,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			a.Close()
			b.Close()
		})
		return a, b
	}

	t.Run("conformance", func(t *testing.T) {
		a, b := newPair(t, "conf", 0)
		tests.Channel_Conformance_Test(t, a, b)
	})

	t.Run("conformance pooled", func(t *testing.T) {
		a, b := newPair(t, "confpool", 4)
		tests.Channel_Conformance_Test(t, a, b)
	})

	t.Run("peer round trip", func(t *testing.T) {
		a, b := newPair(t, "peer", 0)
		tests.Peer_RoundTrip_Test(t, a, b)
	})
}
