package repo

import (
    "context"
    "errors"
    "time"

    "github.com/HamedShams/issue-pulse/internal/config"
    "github.com/HamedShams/issue-pulse/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

func (r *Repository) UpsertIssue(ctx context.Context, i domain.Issue) (int64, error) {
    const q = `
        INSERT INTO issues(key, project, type, status_last, created_at_src, updated_at_src, labels)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT(key) DO UPDATE SET
            project=EXCLUDED.project,
            type=EXCLUDED.type,
            status_last=EXCLUDED.status_last,
            created_at_src=EXCLUDED.created_at_src,
            updated_at_src=EXCLUDED.updated_at_src,
            labels=EXCLUDED.labels
        RETURNING id`
    var id int64
    row := r.db.Pool.QueryRow(ctx, q, i.Key, i.Project, i.Type, i.StatusLast, i.CreatedAt, i.UpdatedAt, i.Labels)
    if err := row.Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) BulkUpsertIssues(ctx context.Context, issues []domain.Issue) error {
    if len(issues) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `
        INSERT INTO issues(key, project, type, status_last, created_at_src, updated_at_src, labels)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT(key) DO UPDATE SET
            project=EXCLUDED.project,
            type=EXCLUDED.type,
            status_last=EXCLUDED.status_last,
            created_at_src=EXCLUDED.created_at_src,
            updated_at_src=EXCLUDED.updated_at_src,
            labels=EXCLUDED.labels`
    for _, i := range issues { batch.Queue(q, i.Key, i.Project, i.Type, i.StatusLast, i.CreatedAt, i.UpdatedAt, i.Labels) }
    br := r.db.Pool.SendBatch(ctx, batch); defer br.Close()
    for range issues { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

// GetIssues loads the last ETL snapshot; it satisfies the same issue-source
// contract as the live Jira loader.
func (r *Repository) GetIssues(ctx context.Context) ([]domain.Issue, error) {
    const q = `SELECT id, key, COALESCE(project,''), COALESCE(type,''), COALESCE(status_last,''),
        created_at_src, updated_at_src, COALESCE(labels, '{}')
        FROM issues ORDER BY id`
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Issue
    for rows.Next() {
        var i domain.Issue
        if err := rows.Scan(&i.ID, &i.Key, &i.Project, &i.Type, &i.StatusLast, &i.CreatedAt, &i.UpdatedAt, &i.Labels); err != nil { return nil, err }
        out = append(out, i)
    }
    return out, rows.Err()
}

func (r *Repository) StartAnalysisRun(ctx context.Context, source string) (int64, error) {
    const q = `INSERT INTO analysis_runs(started_at, source, success) VALUES(now(), $1, false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, source).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishAnalysisRun(ctx context.Context, id int64, issuesScanned, chartsRendered int, success bool, errStr string) error {
    const q = `UPDATE analysis_runs SET finished_at=now(), issues_scanned=$2, charts_rendered=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, issuesScanned, chartsRendered, success, errStr)
    return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.AnalysisRun, error) {
    const q = `SELECT id, started_at, finished_at, COALESCE(source,''), COALESCE(issues_scanned,0),
        COALESCE(charts_rendered,0), COALESCE(success,false), COALESCE(error,'')
        FROM analysis_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    ar := &domain.AnalysisRun{}
    if err := row.Scan(&ar.ID, &ar.StartedAt, &ar.FinishedAt, &ar.Source, &ar.IssuesScanned, &ar.ChartsRendered, &ar.Success, &ar.Error); err != nil { return nil, err }
    return ar, nil
}
