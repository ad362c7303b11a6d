package nats_test

import (
	"fmt"
	"strings"
	"testing"

	natsio "github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"

	"github.com/peerlink/peerrpc/channel/nats"
	tests "github.com/peerlink/peerrpc/internal/test"
)

/*
  Needs docker. The daemon address is taken from the DOCKER_HOST
  environment variable; without a reachable daemon the test is skipped.
*/

type TestContext struct {
	natsAddr string

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

	r, err := tc.dockerPool.Run("nats", "2.1.9-alpine3.12", nil)
	if err != nil {
		t.Skipf("could not start nats container: %s", err)
	}
	tc.dbRes = r

	tc.natsAddr = getAddr(tc.dockerPool.Client.Endpoint(), tc.dbRes.GetPort("4222/tcp"))
	if err := tc.dockerPool.Retry(func() error {
		conn, err := natsio.Connect(tc.natsAddr)
		if err != nil {
			return err
		}
		defer conn.Close()
		if !conn.IsConnected() {
			return fmt.Errorf("not connected")
		}
		return nil
	}); err != nil {
		t.Fatalf("could not connect to nats: %s", err)
	}
}

func (tc *TestContext) TearDown(t testing.TB) {
	t.Log("TearDown")
	if err := tc.dockerPool.Purge(tc.dbRes); err != nil {
		t.Fatalf("could not purge resource: %s", err)
	}
	tc.dbRes = nil
}

func TestNatsChannel(t *testing.T) {
	tc := TestContext{}
	tc.SetUp(t)
	defer tc.TearDown(t)

	newPair := func(t *testing.T, link string) (*nats.Channel, *nats.Channel) {
		a, err := nats.New(tc.natsAddr, link+".a2b", link+".b2a")
		if err != nil {
			t.Fatal(err)
		}
		b, err := nats.New(tc.natsAddr, link+".b2a", link+".a2b")
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
		a, b := newPair(t, "conf")
		tests.Channel_Conformance_Test(t, a, b)
	})

	t.Run("peer round trip", func(t *testing.T) {
		a, b := newPair(t, "peer")
		tests.Peer_RoundTrip_Test(t, a, b)
	})
}
