package sqlinline

const bankItemColumns = `id, user_id, institution, access_token, status,
       disconnected_at, deletion_scheduled_at, created_at, updated_at`

const QSelectBankItemByID = `--sql 61aa9ee3-ad3f-40c6-9819-bdc372ad5c86
select ` + bankItemColumns + `
from bank_items
where id = $1::uuid
limit 1;
`

const QListBankItemsForUser = `--sql 94e2405a-1638-4d9e-b1aa-04d545e25b56
select ` + bankItemColumns + `
from bank_items
where user_id = $1::uuid
order by created_at asc;
`

const QDisconnectBankItem = `--sql 5f833ede-23b1-42e2-a961-0c586eacc7b7
update bank_items
set status = 'disconnected',
    disconnected_at = $2::timestamptz,
    deletion_scheduled_at = $3::timestamptz,
    updated_at = now()
where id = $1::uuid
  and status <> 'disconnected'
returning ` + bankItemColumns + `;
`

const QListBankItems = `--sql e04f1f37-7c43-4b5e-9a25-4c3a4c7f8e11
select ` + bankItemColumns + `
from bank_items
order by created_at asc;
`

const QListBankItemsPurgeDue = `--sql 280a2636-9f96-4be0-bcdb-8efd21e7a142
select ` + bankItemColumns + `
from bank_items
where status = 'disconnected'
  and deletion_scheduled_at is not null
  and deletion_scheduled_at <= $1::timestamptz
order by deletion_scheduled_at asc;
`

const QDeleteBankItemTransactions = `--sql 21b729b0-33f3-4975-a03e-890cadc0e0f4
delete from transactions
where account_id in (select id from accounts where bank_item_id = $1::uuid);
`

const QDeleteBankItemAccounts = `--sql 86072057-bc17-4739-b401-072fc7078fb6
delete from accounts
where bank_item_id = $1::uuid;
`

const QDeleteBankItem = `--sql 5da690e3-f6ea-4a2b-ace4-15fb43eaf525
delete from bank_items
where id = $1::uuid;
`
