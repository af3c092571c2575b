package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"parley/audio"
	"parley/encoder"
	"parley/host"
	"parley/hotkey"
	"parley/log"
	"parley/session"
	"parley/suggest"
	"parley/transcriber"
)

var version = "dev"

var (
	tuiProgram   *tea.Program
	shutdownOnce sync.Once
)

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(t transcriber.Transcriber, s suggest.Provider, format string) string {
	providerLabel := t.Name()
	if lang := t.GetLanguage(); lang != "" {
		providerLabel += " (" + lang + ")"
	}
	return fmt.Sprintf("[%s | %s | %s]", format, providerLabel, s.Name())
}

func run() {
	hostFlag := flag.String("host", "", "Interview host websocket URL (empty: standalone local store)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	formatFlag := flag.String("format", "flac", "Audio format: flac or wav")
	langFlag := flag.String("lang", "en", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("parley %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	switch *formatFlag {
	case "flac", "wav":
	default:
		fmt.Printf("Error: unknown format %q (use flac or wav)\n", *formatFlag)
		os.Exit(1)
	}

	activeTranscriber, err := transcriber.New()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *langFlag != "" {
		activeTranscriber.SetLanguage(*langFlag)
	}

	suggester, err := suggest.New()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(activeTranscriber.Name(), suggester.Name(), *formatFlag)

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	// Standalone mode runs against an in-process store so the tool works
	// without an interview host.
	var activeHost host.Host
	if *hostFlag != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		activeHost, err = host.Dial(dialCtx, *hostFlag)
		cancel()
		if err != nil {
			log.Errorf("host dial error: %v", err)
			fmt.Printf("Error connecting to host %s: %v\n", *hostFlag, err)
			os.Exit(1)
		}
	} else {
		log.Info("no host configured, using standalone local store")
		activeHost = host.NewFake()
	}

	sink := &programSink{}
	ctrl := session.NewController(session.Config{
		Capture:     captureDevice,
		Host:        activeHost,
		Transcriber: activeTranscriber,
		Suggester:   suggester,
		Sink:        sink,
		Format:      *formatFlag,
	})

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("global hotkey unavailable: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: global hotkey unavailable: %v\n", err)
	}

	bridge := session.NewBridge(ctrl, activeHost, hk.Toggled())
	go bridge.Run()

	shutdown := func() {
		shutdownOnce.Do(func() {
			bridge.Teardown()
			hk.Unregister()
			activeHost.Close()
			log.SessionEnd(len(ctrl.Conversation()))
			log.Close()
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if !*tuiFlag {
		fmt.Println("parley running headless, Ctrl+Shift+Space to record, Ctrl+C to quit")
		<-sigCh
		shutdown()
		return
	}

	hooks := tuiHooks{
		toggleRecording: ctrl.ToggleRecording,
		toggleSpeaker:   func() { ctrl.ToggleSpeaker() },
		acknowledge:     ctrl.Acknowledge,
	}
	tuiProgram = NewTUIProgram(hooks, deviceLineText(selectedDevice), modeLineText(activeTranscriber, suggester, *formatFlag))
	sink.SetProgram(tuiProgram)

	go func() {
		<-sigCh
		tuiProgram.Quit()
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	shutdown()
}
