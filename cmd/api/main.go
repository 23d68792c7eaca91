/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/HamedShams/issue-pulse/internal/adapters/jira"
    "github.com/HamedShams/issue-pulse/internal/adapters/openai"
    "github.com/HamedShams/issue-pulse/internal/adapters/telegram"
    "github.com/HamedShams/issue-pulse/internal/config"
    apphttp "github.com/HamedShams/issue-pulse/internal/http"
    "github.com/HamedShams/issue-pulse/internal/jobs"
    "github.com/HamedShams/issue-pulse/internal/logger"
    "github.com/HamedShams/issue-pulse/internal/render"
    "github.com/HamedShams/issue-pulse/internal/repo"
    "github.com/HamedShams/issue-pulse/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    repository := repo.NewRepository(db, log)

    // Adapters
    jc := jira.NewClient(cfg, log)
    llm := openai.NewClient(cfg, log)
    tg := telegram.NewClient(cfg, log)

    renderer, err := render.NewPNG(cfg, log)
    if err != nil { log.Fatal().Err(err).Str("dir", cfg.ChartsDir).Msg("charts dir unavailable") }

    // Issue source: live Jira fetch or the last ETL snapshot
    var source services.IssueSource = jc
    if cfg.IssueSource == "db" { source = repository }

    svc := services.New(cfg, log, repository, source, renderer, llm, tg)

    // HTTP server (Gin)
    router := apphttp.NewRouter(cfg, log, svc)

    // Register Telegram webhook only if PUBLIC_BASE_URL is HTTPS
    if cfg.TelegramWebhookSecret != "" && strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
        go func(){
            ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
            base := strings.TrimRight(cfg.PublicBaseURL, "/")
            webhookURL := base + "/telegram/webhook/" + cfg.TelegramWebhookSecret
            if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
                log.Error().Err(err).Str("url", webhookURL).Msg("telegram setWebhook failed")
            } else {
                log.Info().Str("url", webhookURL).Msg("telegram setWebhook ok")
            }
        }()
    }

    // Cron
    cr := jobs.NewCron(cfg, log, svc, repository)
    cr.Start()
    defer cr.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
