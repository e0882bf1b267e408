package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/cfg"
	"github.com/keithlinneman/docsite/internal/content"
	"github.com/keithlinneman/docsite/internal/cryptoutil"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/metrics"
	"github.com/keithlinneman/docsite/internal/webassets"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// contentPublisher activates snapshots and keeps the content gauges in
// step with what is served.
type contentPublisher struct {
	L   log.Logger
	mgr *content.Manager
	m   *metrics.ServerMetrics
}

func (p contentPublisher) publish(ctx context.Context, snap *content.Snapshot) {
	p.mgr.Set(*snap)
	p.refresh(ctx)
}

func (p contentPublisher) refresh(ctx context.Context) {
	snap, ok := p.mgr.Get()
	if !ok {
		return
	}
	p.m.SetContentSource(string(snap.Meta.Source))
	p.m.SetContentBundle(snap.Meta.Hash)
	p.m.SetContentLoadedTimestamp(snap.LoadedAt)
	sum := snap.Catalog.Summarize()
	p.m.SetCatalogSize(sum.Pages, sum.Modules)
	if len(sum.Missing) > 0 {
		p.L.Warn(ctx, "docs pages reference missing content modules", "missing", sum.Missing)
	}
}

// startContent loads the first snapshot and, with content updates on,
// starts the bundle watcher. The seed bundle is served until something
// better loads; -content-dir failing to load is fatal.
func startContent(ctx context.Context, L log.Logger, conf cfg.App, site cfg.Site, m *metrics.ServerMetrics) (*content.Manager, error) {
	var catalogOpts catalog.Options
	validation := content.ValidationOptions{
		MinFiles:            site.Content.MinFiles,
		RequireProvenance:   !site.Content.SkipProvenance,
		AllowMissingModules: site.Content.AllowMissingModules,
	}
	mgr := content.NewManager()
	pub := contentPublisher{L: L, mgr: mgr, m: m}

	if seedFS, ok := webassets.SeedSiteFS(); ok {
		snap, err := content.NewSnapshot(ctx, seedFS, content.Meta{
			Source:  content.SourceSeed,
			Version: "initial-seed",
		}, catalogOpts)
		if err != nil {
			L.Error(ctx, err, "failed to build seed content snapshot")
		} else {
			pub.publish(ctx, snap)
			L.Info(ctx, "serving seed content")
		}
	} else {
		L.Info(ctx, "no seed content embedded")
	}

	if conf.ContentDir != "" {
		snap, err := content.LoadDir(ctx, conf.ContentDir, catalogOpts)
		if err == nil {
			// local bundles are usually not built by the release pipeline
			dirValidation := validation
			dirValidation.RequireProvenance = false
			err = content.ValidateSnapshot(snap, dirValidation)
		}
		if err != nil {
			return nil, xerrors.Wrapf(err, "load content dir %s", conf.ContentDir)
		}
		pub.publish(ctx, snap)
		L.Info(ctx, "serving content from directory",
			"content_dir", conf.ContentDir,
			"pages", snap.Catalog.Meta.Len(),
			"modules", snap.Catalog.Modules.Len(),
		)
	}

	if !conf.EnableContentUpdates {
		return mgr, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "load aws config")
	}
	loader, err := content.NewLoader(ctx, content.LoaderOptions{
		Logger:    L,
		SSMParam:  conf.ContentSSMParam,
		S3Bucket:  conf.ContentS3Bucket,
		S3Prefix:  conf.ContentS3Prefix,
		S3Client:  s3.NewFromConfig(awsCfg),
		SSMClient: ssm.NewFromConfig(awsCfg),
		Verifier:  cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.ContentSigningKeyARN),
		Catalog:   catalogOpts,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "create content loader")
	}

	snap, err := loader.Load(ctx)
	if err == nil {
		err = content.ValidateSnapshot(snap, validation)
	}
	if err != nil {
		// the watcher retries on its next poll
		L.Error(ctx, err, "failed to load content bundle, serving previous content")
	} else {
		pub.publish(ctx, snap)
		L.Info(ctx, "serving content bundle from S3",
			"content_version", mgr.ContentVersion(),
			"content_hash", mgr.ContentHash(),
		)
	}

	watcher := content.NewWatcher(content.WatcherOptions{
		Logger:       L.With("component", "content-watcher"),
		Loader:       loader,
		Manager:      mgr,
		PollInterval: conf.ContentPollInterval,
		Validation:   &validation,
		Metrics:      m,
		OnSwap:       func(string, string) { pub.refresh(ctx) },
	})
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			L.Error(ctx, err, "content watcher stopped")
		}
	}()
	return mgr, nil
}
