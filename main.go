package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ytget/mp3-client/internal/config"
	"github.com/ytget/mp3-client/internal/console"
	"github.com/ytget/mp3-client/internal/gateway"
	"github.com/ytget/mp3-client/internal/model"
	"github.com/ytget/mp3-client/internal/platform"
	"github.com/ytget/mp3-client/internal/session"
	"github.com/ytget/mp3-client/internal/transport"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const AppName = "MP3 Client"

// flags holds command line overrides; only flags given explicitly are applied
type flags struct {
	configPath string
	saveConfig bool
	noConsole  bool
	httpLog    string

	host            string
	port            int
	connection      string
	serialPort      string
	baud            int
	saveDirectory   string
	fileExtension   string
	responseTimeout time.Duration
	httpPort        int
	httpQueue       int
	debug           bool
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.configPath, "config", config.DefaultFileName, "Settings file (TOML)")
	flag.BoolVar(&f.saveConfig, "save-config", false, "Write the effective settings back to the settings file")
	flag.BoolVar(&f.noConsole, "no-console", false, "Do not read commands from stdin; serve the HTTP gateway only")
	flag.StringVar(&f.httpLog, "http-log", "", "Access log file for the HTTP gateway")

	flag.StringVar(&f.host, "host", config.DefaultHost, "Server host")
	flag.IntVar(&f.port, "port", config.DefaultPort, "Server TCP port")
	flag.StringVar(&f.connection, "connection", config.DefaultConnection, "Connection type: tcp or serial")
	flag.StringVar(&f.serialPort, "serial-port", "", "Serial device for serial connection")
	flag.IntVar(&f.baud, "baud", config.DefaultBaud, "Serial baud rate")
	flag.StringVar(&f.saveDirectory, "save-directory", config.DefaultSaveDirectory, "Directory for downloaded songs")
	flag.StringVar(&f.fileExtension, "file-extension", config.DefaultFileExtension, "Extension of saved songs")
	flag.DurationVar(&f.responseTimeout, "response-timeout", config.DefaultResponseTimeout, "Give up waiting for a response after this long (0 waits forever)")
	flag.IntVar(&f.httpPort, "http-port", 0, "Serve the HTTP gateway on this port (0 disables it)")
	flag.IntVar(&f.httpQueue, "http-queue", config.DefaultHTTPQueue, "Maximum gateway requests queued before returning 429")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

// apply copies explicitly set flags over the loaded settings
func (f *flags) apply(settings *config.Settings) error {
	var err error
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "host":
			settings.SetHost(f.host)
		case "port":
			settings.SetPort(f.port)
		case "connection":
			if e := settings.SetConnection(f.connection); e != nil {
				err = e
			}
		case "serial-port":
			settings.SetSerialPort(f.serialPort)
		case "baud":
			settings.SetBaud(f.baud)
		case "save-directory":
			settings.SetSaveDirectory(f.saveDirectory)
		case "file-extension":
			settings.SetFileExtension(f.fileExtension)
		case "response-timeout":
			settings.SetResponseTimeout(f.responseTimeout)
		case "http-port":
			settings.SetHTTPPort(f.httpPort)
		case "http-queue":
			settings.SetHTTPQueue(f.httpQueue)
		case "debug":
			settings.SetDebug(f.debug)
		}
	})
	if err != nil {
		return err
	}
	return settings.Validate()
}

func main() {
	f := parseFlags()
	fmt.Printf("%s v%s starting...\n", AppName, version)

	settings := config.NewSettings(f.configPath)
	if err := settings.Load(); err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}
	if err := f.apply(settings); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}
	if f.saveConfig {
		if err := settings.Save(); err != nil {
			log.Printf("[config] failed to save settings: %v", err)
		}
	}

	saveDir := settings.GetSaveDirectory()
	if err := platform.CreateDirectoryIfNotExists(saveDir); err != nil {
		log.Fatalf("Failed to create save directory %s: %v", saveDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, transport.Options{
		Type:       settings.GetConnection(),
		Address:    settings.GetAddress(),
		SerialPort: settings.GetSerialPort(),
		Baud:       settings.GetBaud(),
		Debug:      settings.GetDebug(),
	})
	if err != nil {
		log.Fatalf("Error connecting: %v", err)
	}

	sess := session.NewSession(conn, session.Options{
		SaveDirectory:   saveDir,
		FileExtension:   settings.GetFileExtension(),
		ResponseTimeout: settings.GetResponseTimeout(),
		Output:          os.Stdout,
		Debug:           settings.GetDebug(),
	})
	if settings.GetDebug() {
		sess.SetUpdateCallback(func(ex *model.Exchange) {
			log.Printf("[session] %s %s: %s", ex.ID, ex.GetDisplayTitle(), ex.Status)
		})
	}

	if port := settings.GetHTTPPort(); port > 0 {
		go runGateway(ctx, sess, settings, f.httpLog)
	}

	if f.noConsole {
		select {
		case <-ctx.Done():
		case <-sess.Listener().Done():
		}
	} else if err := console.Run(ctx, os.Stdin, os.Stdout, sess); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Session ended: %v", err)
	}

	if err := sess.Close(); err != nil && settings.GetDebug() {
		log.Printf("[session] close: %v", err)
	}
	if settings.GetDebug() {
		printSummary(sess.GetAllExchanges())
	}
}

func runGateway(ctx context.Context, req session.Requester, settings *config.Settings, logPath string) {
	var accessLog io.Writer
	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[http] Error opening HTTP log file: %v", err)
			return
		}
		defer logFile.Close()
		accessLog = logFile
	}

	gw := gateway.New(req, gateway.Options{
		QueueLimit: settings.GetHTTPQueue(),
		AccessLog:  accessLog,
		Debug:      settings.GetDebug(),
	})
	addr := fmt.Sprintf(":%d", settings.GetHTTPPort())
	if err := gw.ListenAndServe(ctx, addr); err != nil {
		log.Printf("[http] HTTP server error: %v", err)
	}
}

func printSummary(exchanges []*model.Exchange) {
	for _, ex := range exchanges {
		switch {
		case ex.Status.IsActive():
			log.Printf("[session] %s: interrupted while %s", ex.GetDisplayTitle(), ex.Status)
		case ex.Kind == model.ExchangeKindList:
			log.Printf("[session] %s: %s, %d lines in %v", ex.GetDisplayTitle(), ex.Status, ex.Lines, ex.GetDuration())
		case ex.Status == model.ExchangeStatusCompleted:
			log.Printf("[session] %s: %s, %s in %v", ex.GetDisplayTitle(), ex.Status, ex.GetSizeString(), ex.GetDuration())
		default:
			log.Printf("[session] %s: %s %s", ex.GetDisplayTitle(), ex.Status, ex.LastError)
		}
	}
}
