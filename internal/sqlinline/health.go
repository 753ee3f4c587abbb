package sqlinline

const QHealthCheck = `--sql 6d6b411d-bef8-4597-8af4-c6d0b2e3dfb9
select 1;
`
