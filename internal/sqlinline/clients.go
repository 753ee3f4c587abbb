package sqlinline

const clientColumns = `id, user_id, name, api_key, status, usage_count, usage_quota,
       last_notified_threshold, last_used_at, reset_date, last_reset_date, created_at, updated_at`

const QSelectClientByID = `--sql fd613664-293c-41f2-9eec-b824bc408cb9
select ` + clientColumns + `
from clients
where id = $1::uuid
limit 1;
`

const QSelectClientByAPIKey = `--sql cbfb65ec-e594-42e8-b3e5-df57d880e1a9
select ` + clientColumns + `
from clients
where api_key = $1::text
limit 1;
`

// Consume increments usage only when the client is active and below quota.
// The conditional update serializes concurrent consumers on the row.
const QConsumeClientUsage = `--sql 25826147-a7f0-4931-91d0-545c75ab765b
update clients
set usage_count = usage_count + 1,
    last_used_at = $2::timestamptz,
    updated_at = now()
where id = $1::uuid
  and status = 'active'
  and usage_count < usage_quota
returning ` + clientColumns + `;
`

// The threshold only ever moves up within a cycle; the write is the claim.
const QAdvanceNotifiedThreshold = `--sql 5e8e298f-63a4-487b-8606-6e3e7a79e001
update clients
set last_notified_threshold = $2::int,
    updated_at = now()
where id = $1::uuid
  and last_notified_threshold < $2::int;
`

const QSelectClientsResetDue = `--sql 51785209-4793-4981-a73d-3efb91d68938
select ` + clientColumns + `
from clients
where status = 'active'
  and reset_date <= $1::timestamptz
order by reset_date asc;
`

// RETURNING sees post-update values, so the pre-reset usage is captured in a
// locked CTE first.
const QResetClientCycle = `--sql f2e7713e-4359-4525-924c-18e62bd9e1e3
with prev as (
    select id, usage_count
    from clients
    where id = $1::uuid
    for update
)
update clients
set last_reset_date = clients.reset_date,
    usage_count = 0,
    last_notified_threshold = 0,
    reset_date = $2::timestamptz,
    updated_at = now()
from prev
where clients.id = prev.id
returning prev.usage_count,
          clients.id, clients.user_id, clients.name, clients.api_key, clients.status,
          clients.usage_count, clients.usage_quota, clients.last_notified_threshold,
          clients.last_used_at, clients.reset_date, clients.last_reset_date,
          clients.created_at, clients.updated_at;
`

const QSetClientStatus = `--sql 3ffd119c-3ffe-49dd-890a-219f93d33d50
update clients
set status = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSetClientQuota = `--sql 93c48879-ccc7-40e0-ac5c-37a73a8985aa
update clients
set usage_quota = $2::int,
    updated_at = now()
where id = $1::uuid;
`
