package sqlinline

const QInsertAuditEntry = `--sql 35759c0c-9881-4490-bdf2-39ecd355d78c
insert into audit_logs (id, action, actor_id, details, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, coalesce($3::jsonb, '{}'::jsonb), now());
`

const QListAuditEntries = `--sql b227c4cb-ccd7-4cb5-ab70-36777e2bf358
select id, action, actor_id, details, created_at
from audit_logs
where ($1::text = '' or action = $1::text)
  and ($2::timestamptz is null or created_at >= $2::timestamptz)
  and ($3::timestamptz is null or created_at <= $3::timestamptz)
order by created_at desc
limit $4::int offset $5::int;
`

const QCountAuditEntries = `--sql e4c7e87e-7038-4bbd-b9b9-91cf350b575f
select count(*)
from audit_logs
where ($1::text = '' or action = $1::text)
  and ($2::timestamptz is null or created_at >= $2::timestamptz)
  and ($3::timestamptz is null or created_at <= $3::timestamptz);
`

// Historical entries survive actor deletion by pointing at the system actor.
const QRepointAuditActor = `--sql 58a796c0-c3a3-483d-84a3-b5986fb3ea54
update audit_logs
set actor_id = $2::uuid
where actor_id = $1::uuid;
`
