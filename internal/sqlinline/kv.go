package sqlinline

const QCreateKVTable = `--sql 3c0f5a52-8d0e-4c4b-9f61-2e7d6a1b9c40
create table if not exists kv_store (
  key text primary key,
  value bytea not null,
  updated_at timestamptz not null default now()
);
`

const QSelectKV = `--sql 8a4d2f17-5b3e-4f0a-a6c2-71e9d0b3f588
select value
from kv_store
where key = $1
limit 1;
`

const QUpsertKV = `--sql d6e1b0c9-2a47-4e83-b5f4-0c9a8e7d6f21
insert into kv_store(key, value, updated_at)
values ($1, $2, now())
on conflict (key) do update
set value = excluded.value,
    updated_at = excluded.updated_at;
`

const QDeleteKV = `--sql 5f2c7e80-9b1d-4a63-8e05-b4d3a2c1f097
delete from kv_store
where key = $1;
`
