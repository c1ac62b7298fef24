package sqlinline

const QUpsertGoogleUser = `--sql 2728a87d-7cac-4c93-bb2e-77384a33ea4d
with incoming as (
    select
        $1::text as google_sub,
        $2::text as email,
        $3::text as name,
        $4::text as picture,
        $5::text as locale,
        $6::int  as initial_credits
),
upserted as (
    insert into users (id, email, name, avatar_url, locale_pref, google_sub, created_at, updated_at)
    values (gen_random_uuid(), (select email from incoming), (select name from incoming),
            (select picture from incoming), (select locale from incoming), (select google_sub from incoming),
            now(), now())
    on conflict (email) do update set
        name = excluded.name,
        avatar_url = excluded.avatar_url,
        locale_pref = excluded.locale_pref,
        google_sub = excluded.google_sub,
        updated_at = now()
    returning id, (xmax = 0) as inserted
),
linked as (
    insert into external_accounts (id, user_id, provider, external_user_id, created_at, updated_at)
    values (gen_random_uuid(), (select id from upserted), 'google', (select google_sub from incoming), now(), now())
    on conflict (provider, external_user_id) do update set
        user_id = excluded.user_id,
        updated_at = now()
    returning user_id
),
granted as (
    insert into credits (user_uuid, balance, created_at, updated_at)
    select id, (select initial_credits from incoming), now(), now()
    from upserted
    where inserted
    on conflict (user_uuid) do nothing
    returning user_uuid
),
history as (
    insert into credit_history (user_uuid, amount, type, description, created_at)
    select user_uuid, (select initial_credits from incoming), 'initial_grant', 'welcome credits', now()
    from granted
    returning id
)
select u.id, u.inserted
from upserted u;
`

const QSelectUserByID = `--sql f903cb07-b09b-401c-ad7c-25c351531231
select
    id,
    email,
    name,
    coalesce(avatar_url, '') as avatar_url,
    coalesce(locale_pref, 'en') as locale,
    created_at
from users
where id = $1::uuid
limit 1;
`
