/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/mehdiazizian/osmetrics-exporter/internal/config"
	"github.com/mehdiazizian/osmetrics-exporter/internal/metrics"
	"github.com/mehdiazizian/osmetrics-exporter/internal/server"
	transporthttp "github.com/mehdiazizian/osmetrics-exporter/internal/transport/http"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var listenAddr string
	var metricsAddr string
	var probeAddr string
	var probeInterval time.Duration
	var concurrency int
	var maxInflightFetches int

	flag.StringVar(&listenAddr, "listen-address", server.DefaultAddr, "The address the exporter endpoint binds to.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the self-metrics endpoint binds to. "+
		"Use 0 to disable the self-metrics service.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.DurationVar(&probeInterval, "probe-interval", transporthttp.DefaultProbeInterval,
		"Interval between upstream readiness probes")
	flag.IntVar(&concurrency, "concurrency", 0, "Pods processed in parallel per scrape (overrides OS_CONCURRENCY)")
	flag.IntVar(&maxInflightFetches, "max-inflight-fetches", 0,
		"Ceiling on concurrent metrics API requests per scrape, negative for unbounded (overrides OS_MAX_INFLIGHT_FETCHES)")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	settings, err := config.Load(os.Getenv, setupLog)
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}
	if concurrency != 0 {
		settings.Concurrency = concurrency
	}
	if maxInflightFetches != 0 {
		settings.MaxInflightFetches = maxInflightFetches
	}
	if err := settings.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}

	setupLog.Info("Using upstream APIs",
		"osApi", settings.OSAPI,
		"osMetricApi", settings.OSMetricAPI,
		"concurrency", settings.Concurrency,
		"maxInflightFetches", settings.MaxInflightFetches)

	tlsConfig, err := settings.TLSConfig()
	if err != nil {
		setupLog.Error(err, "unable to load TLS material")
		os.Exit(1)
	}
	httpClient := transporthttp.NewHTTPClient(tlsConfig, settings.RequestTimeout)
	gaugeClient := transporthttp.NewGaugeClient(settings.OSMetricAPI, settings.AccessToken, httpClient)

	restConfig := settings.RESTConfig()
	clusterClient, err := transporthttp.NewClusterClientForConfig(restConfig)
	if err != nil {
		setupLog.Error(err, "unable to create cluster API client")
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	exporter := server.New(listenAddr, &metrics.Collector{
		Pods:               clusterClient,
		Samples:            gaugeClient,
		Concurrency:        settings.Concurrency,
		MaxInflightFetches: settings.MaxInflightFetches,
	})
	if err := mgr.Add(exporter); err != nil {
		setupLog.Error(err, "unable to add exporter server")
		os.Exit(1)
	}

	prober := transporthttp.NewUpstreamProber(probeInterval, clusterClient, gaugeClient)
	if err := mgr.Add(prober); err != nil {
		setupLog.Error(err, "unable to add upstream prober")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("upstreams", prober.Check); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}

	_ = gaugeClient.Close()
}
