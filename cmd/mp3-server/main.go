package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ytget/mp3-client/internal/platform"
	"github.com/ytget/mp3-client/internal/server"
	"github.com/ytget/mp3-client/internal/transport"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	dir := flag.String("dir", ".", "Directory of \"<song> - <artist><ext>\" files")
	ext := flag.String("ext", platform.DefaultSongExtension, "Song file extension")
	listen := flag.String("listen", ":8080", "TCP listen address")
	connection := flag.String("connection", transport.TypeTCP, "Connection type: tcp or serial")
	serialPort := flag.String("serial-port", "", "Serial device for serial connection")
	baud := flag.Int("baud", transport.DefaultBaud, "Serial baud rate")
	watch := flag.Bool("watch", true, "Rescan the catalog when the directory changes")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	fmt.Printf("MP3 Server v%s starting...\n", version)

	srv, err := server.New(server.Options{Directory: *dir, Extension: *ext, Debug: *debug})
	if err != nil {
		log.Fatalf("Error loading catalog: %v", err)
	}
	log.Printf("[server] %d songs in %s", srv.Catalog().Len(), *dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		go func() {
			if err := srv.Watch(ctx); err != nil {
				log.Printf("[server] %v", err)
			}
		}()
	}

	switch *connection {
	case transport.TypeSerial:
		conn, err := transport.Dial(ctx, transport.Options{
			Type:       transport.TypeSerial,
			SerialPort: *serialPort,
			Baud:       *baud,
			Debug:      *debug,
		})
		if err != nil {
			log.Fatalf("Error opening serial port: %v", err)
		}
		context.AfterFunc(ctx, func() { conn.Close() })
		srv.ServeConn(conn)
	case transport.TypeTCP:
		ln, err := net.Listen("tcp", *listen)
		if err != nil {
			log.Fatalf("Error listening on %s: %v", *listen, err)
		}
		if err := srv.Serve(ctx, ln); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	default:
		log.Fatalf("Unknown connection type %q", *connection)
	}
}
