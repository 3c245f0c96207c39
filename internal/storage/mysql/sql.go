package mysql

const insertPatchSQL = `
INSERT INTO sync_patches (object_id, source, field, value, created_at)
VALUES (?, ?, ?, ?, ?)
`

// A miss is kept once per external id; repeats refresh the reason and timestamp.
const insertMissSQL = `
INSERT INTO sync_misses (external_id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  http_status = VALUES(http_status),
  reason      = VALUES(reason),
  seen_at     = CURRENT_TIMESTAMP
`

const recentPatchesSQL = `
SELECT object_id, source, field, COALESCE(value, ''), created_at
FROM sync_patches
ORDER BY id DESC
LIMIT ?
`
