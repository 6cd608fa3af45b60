// Package main runs a simulated room session against the notification core
// and prints every event it produces. With the tap enabled in the
// configuration, the same events are streamed to WebSocket clients.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/rtcevent"
	"github.com/opd-ai/rtcevent/av"
	"github.com/opd-ai/rtcevent/config"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/relay"
	"github.com/opd-ai/rtcevent/tap"
	"github.com/opd-ai/rtcevent/webrtcbridge"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

const (
	roomID       = "demo-room"
	localStream  = "alice-main"
	remoteStream = "bob-main"
	sampleRate   = 48000
	frameSamples = sampleRate / 50
)

// CLIConfig holds the command-line flags.
type CLIConfig struct {
	configPath string
	duration   time.Duration
	help       bool
}

func parseCLIFlags() *CLIConfig {
	cli := &CLIConfig{}
	flag.StringVar(&cli.configPath, "config", "", "YAML configuration file (default: built-in defaults)")
	flag.DurationVar(&cli.duration, "duration", 10*time.Second, "How long to run the simulation; 0 runs until interrupted")
	flag.BoolVar(&cli.help, "help", false, "Show help message")
	flag.Parse()
	return cli
}

// printer writes every event to stdout.
type printer struct{}

func (printer) HandleEnvelope(env dispatch.Envelope) {
	fmt.Printf("#%-5d %-36s %-8s %s\n", env.Seq, env.Event.Kind(), env.Event.Key().Scope, env.Event.Key().ID)
}

func main() {
	cli := parseCLIFlags()
	if cli.help {
		flag.Usage()
		return
	}

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cli.duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cli.duration)
		defer stop()
	}

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("Demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	engine, err := rtcevent.New(cfg.Options())
	if err != nil {
		return err
	}
	defer engine.Stop()

	if _, err := engine.RegisterObserver(printer{}); err != nil {
		return err
	}

	tapDone := make(chan error, 1)
	if cfg.Tap.Enabled {
		t := tap.New(tap.Options{
			ClientBuffer: cfg.Tap.ClientBuffer,
			Mode:         cfg.Tap.Mode,
			Stats:        engine.Stats,
		})
		if _, err := engine.RegisterObserver(t); err != nil {
			return err
		}
		go func() { tapDone <- t.Serve(ctx, cfg.Tap.Addr) }()
	} else {
		close(tapDone)
	}

	if err := engine.Start(); err != nil {
		return err
	}

	bridge := webrtcbridge.New(engine.Sessions(), engine.Streams(), webrtcbridge.Options{
		RoomID: roomID,
		Meter:  engine.OpusMeter(),
	})
	engine.SetQualityProbe(bridge)

	if err := setUp(engine, bridge); err != nil {
		return err
	}
	simulate(ctx, engine, bridge)

	if err := engine.LogoutRoom(roomID); err != nil {
		return err
	}
	engine.Stop()
	if err := <-tapDone; err != nil {
		return fmt.Errorf("event tap: %w", err)
	}
	return nil
}

func setUp(engine *rtcevent.Engine, bridge *webrtcbridge.Bridge) error {
	if err := engine.LoginRoom(roomID, event.User{UserID: "alice", UserName: "Alice"}); err != nil {
		return err
	}
	bridge.HandleConnectionState(webrtc.PeerConnectionStateConnected)

	if err := engine.StartPublishingStream(localStream, roomID, event.PublishChannelMain); err != nil {
		return err
	}
	bridge.AddPublishedStream(localStream)

	remote := []event.Stream{{User: event.User{UserID: "bob", UserName: "Bob"}, StreamID: remoteStream}}
	if err := engine.ApplyStreamUpdate(roomID, event.UpdateTypeAdd, remote); err != nil {
		return err
	}
	if err := engine.StartPlayingStream(remoteStream, roomID, av.PlayOptions{}); err != nil {
		return err
	}

	if err := engine.StartSoundLevelMonitor(); err != nil {
		return err
	}
	return engine.Sessions().SetOnlineCount(roomID, 2)
}

// simulate feeds 20 ms of media per step until ctx is done.
func simulate(ctx context.Context, engine *rtcevent.Engine, bridge *webrtcbridge.Bridge) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var seq uint16
	var step int
	pcm := make([]byte, frameSamples*2)
	param := relay.AudioFrameParam{SampleRate: sampleRate, Channels: 1}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		step++
		seq++

		tone(pcm, step, 440, 0.3)
		engine.Relay().CapturedAudio(pcm, param)
		_ = engine.Streams().CapturedAudioFrame(event.PublishChannelMain)
		_ = engine.Streams().CapturedVideoFrame(event.PublishChannelMain, 1280, 720)
		bridge.ObserveOutgoing(localStream, webrtc.MimeTypeVP8, &rtp.Packet{
			Header:  rtp.Header{SequenceNumber: seq, Marker: true},
			Payload: make([]byte, 1200),
		})

		tone(pcm, step, 220, 0.1)
		engine.Relay().PlayerAudio(pcm, param, remoteStream)
		_ = engine.Streams().ReceivedAudioFrame(remoteStream)
		bridge.ObserveIncoming(remoteStream, webrtc.MimeTypeVP8, &rtp.Packet{
			Header:  rtp.Header{SequenceNumber: seq, Marker: true},
			Payload: vp8Frame(step%50 == 1, 640, 360),
		})
	}
}

// tone fills buf with 16-bit PCM of a sine wave.
func tone(buf []byte, step int, freq, amplitude float64) {
	offset := step * frameSamples
	for i := 0; i < len(buf)/2; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(offset+i)/sampleRate)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*math.MaxInt16)))
	}
}

// vp8Frame returns a single-packet VP8 payload; key frames carry the size.
func vp8Frame(key bool, width, height int) []byte {
	if !key {
		return []byte{0x10, 0x01, 0x00, 0x00}
	}
	return []byte{
		0x10,
		0x10, 0x02, 0x00,
		0x9d, 0x01, 0x2a,
		byte(width), byte(width >> 8),
		byte(height), byte(height >> 8),
	}
}
