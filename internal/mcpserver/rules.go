package mcpserver

// SubmissionRules describes what makes an idea acceptable, for LLM clients
// that draft ideas before calling submit_idea.
const SubmissionRules = `# Idea Submission Rules

Each identity may submit ONE idea per calendar day. The day rolls over at
local midnight of the server's configured timezone.

## Text

1. Length is 10 to 600 characters after trimming surrounding whitespace.
2. The text must read as real words. These are rejected:
   - a short unit repeated four or more times in a row (` + "`" + `hahahaha` + "`" + `, ` + "`" + `soooo` + "`" + `)
   - text made only of one keyboard row (` + "`" + `qwerty` + "`" + `, ` + "`" + `asdfgh` + "`" + `)
   - text without both vowels and consonants
   - ALL CAPS text longer than 20 characters
   - two or more words longer than two letters that are all the same word
3. Inappropriate language is rejected. The response lists neutral alternatives
   for the first offending word.

## Votes

- Ratings are whole stars from 1 to 5.
- Each identity votes once per idea and cannot change the vote.
- The idea's average is the mean of all votes rounded to two decimals.

## Feed

- ` + "`" + `filter` + "`" + `: all, voted or unvoted.
- ` + "`" + `sort` + "`" + `: date (newest first), stars or views. Ties keep the loaded order.
`
