package kafka_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/peerlink/peerrpc/channel/kafka"
	tests "github.com/peerlink/peerrpc/internal/test"
)

/*
  Needs docker. The daemon address is taken from the DOCKER_HOST
  environment variable; without a reachable daemon the test is skipped.

  The broker's advertised listener must match the address the client
  dials, so the container port is bound to a fixed host port.
*/

const kafkaHostPort = "19092"

type TestContext struct {
	kafkaAddr string

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

	tc.kafkaAddr = getAddr(tc.dockerPool.Client.Endpoint(), kafkaHostPort)
	r, err := tc.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "bitnami/kafka",
		Tag:        "3.6",
		Env: []string{
			"KAFKA_CFG_NODE_ID=0",
			"KAFKA_CFG_PROCESS_ROLES=controller,broker",
			"KAFKA_CFG_LISTENERS=PLAINTEXT://:9092,CONTROLLER://:9094",
			"KAFKA_CFG_ADVERTISED_LISTENERS=PLAINTEXT://" + tc.kafkaAddr,
			"KAFKA_CFG_CONTROLLER_LISTENER_NAMES=CONTROLLER",
			"KAFKA_CFG_CONTROLLER_QUORUM_VOTERS=0@localhost:9094",
			"ALLOW_PLAINTEXT_LISTENER=yes",
		},
		ExposedPorts: []string{"9092/tcp"},
		PortBindings: map[docker.Port][]docker.PortBinding{
			"9092/tcp": {{HostIP: "0.0.0.0", HostPort: kafkaHostPort}},
		},
	})
	if err != nil {
		t.Skipf("could not start kafka container: %s", err)
	}
	tc.dbRes = r

	if err := tc.dockerPool.Retry(func() error {
		client, err := sarama.NewClient([]string{tc.kafkaAddr}, saramaConfig())
		if err != nil {
			return err
		}
		defer client.Close()
		return client.RefreshMetadata()
	}); err != nil {
		t.Fatalf("could not connect to kafka: %s", err)
	}
}

func (tc *TestContext) TearDown(t testing.TB) {
	t.Log("TearDown")
	if err := tc.dockerPool.Purge(tc.dbRes); err != nil {
		t.Fatalf("could not purge resource: %s", err)
	}
	tc.dbRes = nil
}

func saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.Return.Successes = true
	// survive a post that lands before the group finishes joining
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return cfg
}

func TestKafkaChannel(t *testing.T) {
	tc := TestContext{}
	tc.SetUp(t)
	defer tc.TearDown(t)

	newPair := func(t *testing.T, link string) (*kafka.Channel, *kafka.Channel) {
		a, err := kafka.New([]string{tc.kafkaAddr}, saramaConfig(), link+"-a", link+".a2b", link+".b2a")
		if err != nil {
			t.Fatal(err)
		}
		b, err := kafka.New([]string{tc.kafkaAddr}, saramaConfig(), link+"-b", link+".b2a", link+".a2b")
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
