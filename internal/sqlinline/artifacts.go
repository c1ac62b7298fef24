package sqlinline

// QInsertPersistedArtifact records a durable copy of one task result. The
// (task_id, result_index) key makes repeated observations of the same
// completed task idempotent: conflicting inserts are ignored.
const QInsertPersistedArtifact = `--sql ff939a60-9177-4c2f-a66f-ce76cbe2cf3e
insert into persisted_artifacts (id, task_id, result_index, durable_url, source_url, content_type, storage_key, created_at)
values (gen_random_uuid(), $1::text, $2::int, $3::text, $4::text, $5::text, $6::text, now())
on conflict (task_id, result_index) do nothing;
`

const QSelectPersistedArtifact = `--sql 7562ca1c-1a7c-430c-9f41-e7071ea5cce0
select durable_url
from persisted_artifacts
where task_id = $1::text
  and result_index = $2::int
limit 1;
`
