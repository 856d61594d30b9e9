package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gt06gateway/internal/config"
	"gt06gateway/internal/logger"
	"gt06gateway/internal/protocol/gt06"
)

func main() {
	addr := flag.String("addr", "localhost:5027", "gateway GT06 listener address")
	imei := flag.String("imei", "123456789012345", "IMEI of the first simulated device")
	devices := flag.Int("devices", 1, "number of devices; IMEIs count up from -imei")
	interval := flag.Duration("interval", 10*time.Second, "location report interval")
	heartbeat := flag.Duration("heartbeat", time.Minute, "heartbeat interval")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(config.LogConfig{Level: *logLevel, Format: "console"})

	base, err := strconv.ParseUint(*imei, 10, 64)
	if err != nil || len(*imei) != 15 {
		log.Fatal().Str("imei", *imei).Msg("IMEI must have 15 digits")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *devices; i++ {
		d := NewDevice(fmt.Sprintf("%015d", base+uint64(i)), i)
		g.Go(func() error {
			return simulate(gctx, *addr, d, *interval, *heartbeat, log)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Simulator stopped with error")
	}
}

// simulate keeps one device connected, reconnecting after connection loss
func simulate(ctx context.Context, addr string, d *Device, interval, heartbeat time.Duration, logger zerolog.Logger) error {
	log := logger.With().Str("device_id", d.IMEI).Logger()

	for {
		err := session(ctx, addr, d, interval, heartbeat, log)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("Connection lost, reconnecting in 5s")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

func session(ctx context.Context, addr string, d *Device, interval, heartbeat time.Duration, log zerolog.Logger) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	frames := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readFrames(conn, d, frames, log)
	}()

	login, err := d.LoginFrame()
	if err != nil {
		return err
	}
	if _, err := conn.Write(login); err != nil {
		return err
	}
	log.Info().Str("addr", addr).Msg("Login sent")
	d.SetIgnition(true)

	locTicker := time.NewTicker(interval)
	defer locTicker.Stop()
	hbTicker := time.NewTicker(heartbeat)
	defer hbTicker.Stop()
	last := time.Now()

	for {
		var out []byte
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case out = <-frames:
		case now := <-locTicker.C:
			d.Step(now.Sub(last))
			last = now
			if out, err = d.LocationFrame(now); err != nil {
				return err
			}
		case <-hbTicker.C:
			if out, err = d.HeartbeatFrame(); err != nil {
				return err
			}
		}
		if _, err := conn.Write(out); err != nil {
			return err
		}
	}
}

// readFrames logs acknowledgements and answers commands through out
func readFrames(conn net.Conn, d *Device, out chan<- []byte, log zerolog.Logger) error {
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("gateway closed the connection")
			}
			return err
		}
		buf = append(buf, chunk[:n]...)

		for {
			raw, consumed, err := gt06.ReadFrame(buf)
			if errors.Is(err, gt06.ErrIncompleteFrame) {
				break
			}
			buf = buf[consumed:]
			if err != nil {
				continue
			}

			f, err := gt06.ParseFrame(raw)
			if err != nil {
				log.Warn().Err(err).Msg("Bad frame from gateway")
				continue
			}
			if f.Type != gt06.MsgCommand0 {
				log.Debug().Str("msg_type", gt06.GetMessageTypeName(f.Type)).Uint16("index", f.Index).Msg("Ack received")
				continue
			}

			reply, text, err := d.CommandReply(f)
			if err != nil {
				log.Warn().Err(err).Msg("Unreadable command")
				continue
			}
			log.Info().Str("command", text).Msg("Command received")
			out <- reply
		}
	}
}
