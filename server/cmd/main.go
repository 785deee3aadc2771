package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/nomoresecretz/flymap/common/decoder"
	"github.com/nomoresecretz/flymap/common/relay"
	"github.com/nomoresecretz/flymap/server"
	"github.com/nomoresecretz/flymap/server/cypher"
)

const defaultPort = 6420

var (
	tagMap     = flag.String("tagFile", "", "File with tag mappings, overrides the built in table")
	port       = flag.Uint("port", defaultPort, "port to listen on for relay connections")
	bindAddr   = flag.String("bindAddr", "127.0.0.1", "Network bind address")
	httpAddr   = flag.String("httpAddr", "127.0.0.1:6421", "address for the hook websocket and state API, empty to disable")
	mqttBroker = flag.String("mqtt", "", "MQTT broker url for event telemetry, e.g. tcp://127.0.0.1:1883")
	recordPath = flag.String("record", "", "SQLite file to record events to")
	capture    = flag.String("capture", "", "append raw hook frames to this file for later replay")
	replayFile = flag.String("replay", "", "feed a capture file through the decoder")
	debugFlag  = flag.Bool("debug", false, "enable debugging")
)

// arrayFlags is used as a multivalue input.
type arrayFlags []string

func (i *arrayFlags) String() string {
	return fmt.Sprint(*i)
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)

	return nil
}

var sampleFiles arrayFlags

func main() {
	flag.Var(&sampleFiles, "samples", "key sample file(s) of known cipher/plain pairs")
	flag.Parse()

	server.InitLogger(os.Stderr, *debugFlag)

	err := doStuff(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("failed to start server")
		os.Exit(-1)
	}
}

func loadKeys() (cypher.Keys, error) {
	var set cypher.SampleSet

	for _, f := range sampleFiles {
		s, err := cypher.LoadSamples(f)
		if err != nil {
			return cypher.Keys{}, fmt.Errorf("%s: %w", f, err)
		}

		set = set.Merge(s)
	}

	if len(sampleFiles) == 0 {
		log.Warn().Msg("no key samples given, traffic is treated as clear text")
	}

	return cypher.DeriveKeys(set)
}

// doStuff does the actual heavy lifting running the server.
func doStuff(ctx context.Context) error {
	ctx, ctxcf := context.WithCancel(ctx)
	defer ctxcf()

	keys, err := loadKeys()
	if err != nil {
		return err
	}

	d := decoder.NewDefaultDecoder()
	if *tagMap != "" {
		d = decoder.NewDecoder()
		if err := d.LoadMap(*tagMap); err != nil {
			return fmt.Errorf("unable to load tag map: %w", err)
		}
	}

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *bindAddr, *port))
	if err != nil {
		return err
	}
	defer l.Close()

	var ops []grpc.ServerOption
	grpc := grpc.NewServer(ops...)

	fs, err := server.New(ctx, server.Config{
		Tags:       d,
		Keys:       keys,
		HTTPAddr:   *httpAddr,
		MQTTBroker: *mqttBroker,
		RecordPath: *recordPath,
		Capture:    *capture,
		Replay:     *replayFile,
	})
	if err != nil {
		return err
	}

	relay.RegisterRelayServer(grpc, fs)

	cctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, wctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		select {
		case <-cctx.Done():
			fs.GracefulStop()
			grpc.GracefulStop()
			ctxcf()
		case <-wctx.Done():
			grpc.GracefulStop()
		}

		return nil
	})

	eg.Go(func() error {
		return fs.Run(wctx)
	})

	eg.Go(func() error {
		log.Info().Str("addr", l.Addr().String()).Msg("Starting relay server")

		return grpc.Serve(l)
	})

	return eg.Wait()
}
