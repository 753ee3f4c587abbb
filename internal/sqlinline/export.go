package sqlinline

// Read-only snapshot queries backing the account data export. Export never
// joins the purge transaction.

const QExportTransactions = `--sql c5a9bb8d-8047-43d4-9e6d-e880478173fa
select id, account_id, amount_cents, merchant, category, occurred_at
from transactions
where user_id = $1::uuid
order by occurred_at asc;
`

const QExportInsightMetrics = `--sql a927061e-edc6-4d36-a6be-9975948bf739
select id, kind, payload, created_at
from insight_metrics
where user_id = $1::uuid
order by created_at asc;
`

const QInsertInsightMetric = `--sql 5dc79c91-9819-40b1-a925-d92a7e3d2227
insert into insight_metrics (id, user_id, kind, payload, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, coalesce($3::jsonb, '{}'::jsonb), now());
`
