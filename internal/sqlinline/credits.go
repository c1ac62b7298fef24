package sqlinline

// QSpendCredits debits a user's balance and records the transaction in one
// statement. The debit CTE matches only when the balance covers the amount,
// so an insufficient balance surfaces as an empty result (pgx.ErrNoRows).
const QSpendCredits = `--sql d265848d-4490-4c40-926b-df011bf9846c
with input as (
    select
        $1::uuid as user_uuid,
        $2::int  as amount,
        $3::text as business_type,
        $4::text as description
),
debited as (
    update credits c
    set balance = c.balance - (select amount from input),
        updated_at = now()
    where c.user_uuid = (select user_uuid from input)
      and c.balance >= (select amount from input)
    returning c.balance
),
history as (
    insert into credit_history (user_uuid, amount, type, description, created_at)
    select (select user_uuid from input), -(select amount from input),
           (select business_type from input), (select description from input), now()
    where exists (select 1 from debited)
    returning id
)
select d.balance from debited d;
`

const QSelectCreditBalance = `--sql b70625b8-affb-4bad-b5ce-3c05c32ad55e
select coalesce(balance, 0)
from credits
where user_uuid = $1::uuid
limit 1;
`

const QCountCreditHistory = `--sql 31d4d94f-4d58-471d-9d95-d7891ac6337f
select count(*)
from credit_history
where user_uuid = $1::uuid;
`

const QSelectCreditHistoryPage = `--sql 3d1ece87-117c-44bb-9378-23223e1ce1df
select id, amount, type, coalesce(description, '') as description, created_at
from credit_history
where user_uuid = $1::uuid
order by created_at desc, id desc
limit $2::int offset $3::int;
`
