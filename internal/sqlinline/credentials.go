package sqlinline

const QSelectAppCredential = `--sql 9b959c7b-74e9-46c6-9d62-e7880ee118e4
select token
from app_credentials
where provider = $1::text
limit 1;
`

const QUpsertAppCredential = `--sql c4e03b0e-1ffd-43ba-9930-aa9ab612ef74
insert into app_credentials (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
