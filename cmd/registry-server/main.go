package main

import (
	"flag"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/pulseengine/component-resolver/internal/registry"
	"github.com/pulseengine/component-resolver/internal/remote"
)

func main() {
	var listenAddr string
	var root string
	flag.StringVar(&listenAddr, "listen", ":50051", "address to listen on")
	flag.StringVar(&root, "root", "mirror", "directory laid out as <name>/<version>.wasm")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()
	log.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	logger := log.Log.WithName("registry")

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		panic(fmt.Errorf("listen %s: %w", listenAddr, err))
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(registry.LoggingInterceptor(logger)))
	registry.RegisterRegistryServer(grpcServer, registry.NewServer(remote.NewDirSource(root)))

	ctx := signals.SetupSignalHandler()
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	logger.Info("serving components", "listen", lis.Addr().String(), "root", root)
	if err := grpcServer.Serve(lis); err != nil {
		panic(fmt.Errorf("grpc serve: %w", err))
	}
}
