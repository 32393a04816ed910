package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pulseengine/component-resolver/internal/registry"
)

func main() {
	var target string
	var name string
	var version string
	var out string
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC server address")
	flag.StringVar(&name, "name", "", "component name")
	flag.StringVar(&version, "version", "*", "version or constraint")
	flag.StringVar(&out, "out", "", "write the component to this file")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, conn, err := registry.Dial(target)
	if err != nil {
		panic(fmt.Errorf("dial %s: %w", target, err))
	}
	defer conn.Close()

	comp, err := client.Fetch(ctx, name, version)
	if err != nil {
		fmt.Printf("Fetch error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetch ok: version=%s digest=%s size=%d\n", comp.Version, comp.Digest, len(comp.Content))

	if out != "" {
		if err := os.WriteFile(out, comp.Content, 0o644); err != nil {
			panic(fmt.Errorf("write %s: %w", out, err))
		}
	}
}
