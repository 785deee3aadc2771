package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nomoresecretz/flymap/common/relay"
)

var (
	serverAddr = flag.String("server", "127.0.0.1:6420", "Server target info")
	snapshot   = flag.Bool("snapshot", false, "print the current entity table and exit")
	diag       = flag.Bool("diag", false, "print recent decode diagnostics and exit")
	raw        = flag.Bool("raw", false, "dump updates as received")
)

// Simple relay client.
func main() {
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cf := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cf()

	if err := doStuff(ctx); err != nil {
		log.Error().Err(err).Msg("client failed")
		os.Exit(-1)
	}
}

func doStuff(ctx context.Context) error {
	conn, err := grpc.DialContext(ctx, *serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	c := relay.NewRelayClient(conn)

	switch {
	case *snapshot:
		s, err := c.Snapshot(ctx, &emptypb.Empty{}, grpc.WaitForReady(true))
		if err != nil {
			return err
		}

		renderSnapshot(os.Stdout, s)

		return nil
	case *diag:
		l, err := c.Diagnostics(ctx, &emptypb.Empty{}, grpc.WaitForReady(true))
		if err != nil {
			return err
		}

		renderDiagnostics(os.Stdout, l)

		return nil
	}

	return follow(ctx, c, conn)
}

func follow(ctx context.Context, c relay.RelayClient, conn *grpc.ClientConn) error {
	fs, err := c.Follow(ctx, &emptypb.Empty{}, grpc.WaitForReady(true))
	if err != nil {
		return err
	}

	log.Info().Str("server", *serverAddr).Msg("connected, beginning stream")

	var lastSeq float64

	for {
		u, err := fs.Recv()
		if err == io.EOF {
			log.Info().Msg("server ended stream")

			break
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if conn.GetState() != connectivity.Ready {
				log.Info().Err(err).Msg("relay stream broken, attempting reconnect")

				fs, err = c.Follow(ctx, &emptypb.Empty{}, grpc.WaitForReady(true))
				if err != nil {
					return err
				}

				log.Info().Msg("relay reconnect successful")

				continue
			}

			return err
		}

		// The backlog is replayed on every attach; a restarted server starts over at 1.
		seq := u.Fields["seq"].GetNumberValue()
		if seq == 1 {
			lastSeq = 0
		}

		if seq <= lastSeq {
			continue
		}
		lastSeq = seq

		if *raw {
			spew.Dump(u.AsMap())
			continue
		}

		fmt.Println(formatUpdate(u))
	}

	return nil
}

func formatUpdate(u *structpb.Struct) string {
	f := u.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	num := func(k string) float64 { return f[k].GetNumberValue() }

	head := fmt.Sprintf("%06d %s %-16s", int64(num("seq")), str("observedAt"), str("type"))

	switch str("type") {
	case "chat-message":
		return fmt.Sprintf("%s [%s] %s", head, str("direction"), str("message"))
	case "initial-packet":
		return fmt.Sprintf("%s %s", head, str("data"))
	}

	s := fmt.Sprintf("%s x=%.2f y=%.2f z=%.2f rot=%.1f", head, num("x"), num("y"), num("z"), num("rotation"))
	if id := str("id"); id != "" {
		s += " id=" + id
	}

	if f["isSpawn"].GetBoolValue() {
		s += " spawn"
	}

	return s
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderSnapshot(w io.Writer, s *structpb.Struct) {
	f := s.GetFields()

	for _, k := range []string{"player", "user"} {
		a := f[k].GetStructValue()
		if a == nil {
			fmt.Fprintf(w, "%s: unknown\n", k)
			continue
		}

		af := a.GetFields()
		fmt.Fprintf(w, "%s: x=%s y=%s z=%s rot=%s\n", k,
			ff(af["x"].GetNumberValue()), ff(af["y"].GetNumberValue()), ff(af["z"].GetNumberValue()), ff(af["rotation"].GetNumberValue()))
	}

	fmt.Fprintf(w, "chats: %d\n", int64(f["chats"].GetNumberValue()))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "X", "Y", "Z", "Rot", "Map X", "Map Y", "Updates"})

	for _, v := range f["monsters"].GetListValue().GetValues() {
		m := v.GetStructValue().GetFields()
		table.Append([]string{
			m["id"].GetStringValue(),
			ff(m["x"].GetNumberValue()),
			ff(m["y"].GetNumberValue()),
			ff(m["z"].GetNumberValue()),
			ff(m["rotation"].GetNumberValue()),
			ff(m["mapX"].GetNumberValue()),
			ff(m["mapY"].GetNumberValue()),
			strconv.FormatInt(int64(m["updates"].GetNumberValue()), 10),
		})
	}

	table.Render()
}

func renderDiagnostics(w io.Writer, l *structpb.ListValue) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"At", "Direction", "Tag", "Name", "Kind", "Offset", "Want", "Have"})

	var dumps []string

	for _, v := range l.GetValues() {
		d := v.GetStructValue().GetFields()
		table.Append([]string{
			d["at"].GetStringValue(),
			d["direction"].GetStringValue(),
			d["tag"].GetStringValue(),
			d["name"].GetStringValue(),
			d["kind"].GetStringValue(),
			strconv.Itoa(int(d["offset"].GetNumberValue())),
			strconv.Itoa(int(d["want"].GetNumberValue())),
			strconv.Itoa(int(d["have"].GetNumberValue())),
		})

		if dump := d["dump"].GetStringValue(); dump != "" {
			dumps = append(dumps, d["tag"].GetStringValue()+"\n"+dump)
		}
	}

	table.Render()

	sort.Strings(dumps)
	for _, d := range dumps {
		fmt.Fprintln(w, d)
	}
}
