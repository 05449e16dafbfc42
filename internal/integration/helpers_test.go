//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-data-tbb/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

var scanStart = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("tbb-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeScene writes uniform Celsius grids for each band, one file per value,
// 10 minutes apart, and returns the paths.
func writeScene(t *testing.T, scene map[string][]float64) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for band, vals := range scene {
		for step, v := range vals {
			ts := scanStart.Add(time.Duration(step) * 10 * time.Minute)
			path := filepath.Join(dir, fmt.Sprintf("H09_%s_%s.nc", band, ts.Format("200601021504")))
			require.NoError(t, netcdf.WriteGridFile(path, netcdf.GridFile{
				Variable: "tbb",
				Units:    "degC",
				Lat:      []float64{-7.5, -7.25, -7},
				Lon:      []float64{112.5, 112.75, 113},
				Values:   [][]float64{{v, v, v}, {v, v, v}, {v, v, v}},
			}))
			paths = append(paths, path)
		}
	}
	return paths
}

func newAnalyzer() *domain.Analyzer {
	return domain.NewAnalyzer(netcdf.NewReader(discardLogger()), domain.DefaultSamplerConfig(), domain.DefaultIndexConfig(), discardLogger())
}
