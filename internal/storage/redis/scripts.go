package redis

const (
	// replaceLedgerScript atomically swaps the ledger hash for a new table.
	replaceLedgerScript = `
local ledger_key = KEYS[1]     -- attr:ledger

redis.call('DEL', ledger_key)

local written = 0
for i = 1, #ARGV, 2 do
  redis.call('HSET', ledger_key, ARGV[i], ARGV[i + 1])
  written = written + 1
end

return written
`
)
