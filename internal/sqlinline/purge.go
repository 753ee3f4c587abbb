package sqlinline

// The purge statements run in a fixed order inside one transaction; the user
// row lock acquired by QLockUserForPurge serializes concurrent purge attempts.

const QLockUserForPurge = `--sql ca78d4db-41b4-4e6e-ad79-0d19204aaadf
select status, marked_for_deletion_at
from users
where id = $1::uuid
for update;
`

const QPurgeTransactions = `--sql cdef61b2-7bf0-491a-b130-dc0a36ee672b
delete from transactions
where user_id = $1::uuid;
`

const QPurgeAccounts = `--sql 34c7d5f5-454a-4659-bcb5-e9d4bba062aa
delete from accounts
where user_id = $1::uuid;
`

const QPurgeInsightMetrics = `--sql c789d8da-1697-4fb5-80e3-20f6baeeb170
delete from insight_metrics
where user_id = $1::uuid;
`

const QPurgeSpendingPatterns = `--sql 52ae07bb-a786-4135-8cdf-e9efa924b5fd
delete from spending_patterns
where user_id = $1::uuid;
`

const QPurgeAuthTokens = `--sql 3f056449-4a2c-4518-8694-312edb4d106d
delete from auth_tokens
where user_id = $1::uuid;
`

const QPurgeBankItems = `--sql 5c6d29a2-8220-4347-8b8b-2377a9ea4618
delete from bank_items
where user_id = $1::uuid;
`

const QPurgeClients = `--sql 9e114fbd-30f2-41ff-9fe6-9df937ebe694
delete from clients
where user_id = $1::uuid;
`

const QPurgeUserRow = `--sql ca5aa4d4-c2f2-4062-ac47-2aae2889240b
delete from users
where id = $1::uuid;
`
