package sqlinline

const userColumns = `id, email, name, role, locale, status, last_activity_at,
       inactivity_warning_date, marked_for_deletion_at, deletion_reason,
       retention_preferences, created_at, updated_at`

const QSelectUserByID = `--sql a16551a3-9c8b-409f-b1fb-e8576fa26118
select ` + userColumns + `
from users
where id = $1::uuid
limit 1;
`

// Marking is conditional on no pending request so two concurrent closure
// requests cannot both succeed.
const QMarkUserForDeletion = `--sql 94746e82-b6f1-4f9c-8adb-6f1490ae67d7
update users
set status = 'marked_for_deletion',
    marked_for_deletion_at = $2::timestamptz,
    deletion_reason = nullif($3::text, ''),
    updated_at = now()
where id = $1::uuid
  and marked_for_deletion_at is null
returning ` + userColumns + `;
`

const QCancelUserDeletion = `--sql a4622b51-57f4-4c59-98f9-a26e3fe13b20
update users
set status = 'active',
    marked_for_deletion_at = null,
    inactivity_warning_date = null,
    deletion_reason = null,
    updated_at = now()
where id = $1::uuid
  and marked_for_deletion_at is not null
returning ` + userColumns + `;
`

const QSetInactivityWarning = `--sql 919b0c4e-5964-4bfc-9f04-bf2fcbd24a45
update users
set inactivity_warning_date = $2::timestamptz,
    updated_at = now()
where id = $1::uuid;
`

const QUpdateRetentionPreferences = `--sql f80a7740-f115-43cb-9ee2-dadf6a2c339a
update users
set retention_preferences = $2::jsonb,
    updated_at = now()
where id = $1::uuid;
`

const QListMarkedForDeletion = `--sql 409f9ef9-f800-4b9a-9f1b-b93a14febe2b
select ` + userColumns + `
from users
where marked_for_deletion_at is not null
order by marked_for_deletion_at asc
limit $1::int offset $2::int;
`

const QCountMarkedForDeletion = `--sql c1d9a66a-0332-4257-ba56-2c8c5da11ac0
select count(*)
from users
where marked_for_deletion_at is not null;
`

const QListUsersForRetention = `--sql b98fceaf-ea18-495e-8895-917a3e515e6c
select ` + userColumns + `
from users
where id <> '00000000-0000-0000-0000-000000000000'::uuid
order by created_at asc;
`
