package mcpserver

// NoteFormatContract describes the canonical note format that LLM
// consumers should follow when creating or updating notes.
const NoteFormatContract = `# Notevault Note Format Contract

Every note stored in notevault MUST follow this structure.

## Identity

- A note is addressed by its **filename without extension** plus an
  optional **folder locator**. The backing entry on disk is always
  ` + "`" + `<filename>.md` + "`" + `.
- An empty folder locator means the storage root. Folder locators are
  opaque: pass back exactly what a directory listing returned, never
  construct one by hand.

## Content

` + "```" + `markdown
# Human-readable title

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Content is plain Markdown.** No frontmatter is required or parsed;
   the first 200 characters of raw content become the listing preview.
2. **Filenames** carry no ` + "`" + `.md` + "`" + ` extension and no path separators.
3. **Encoding** is UTF-8.
4. **Renames** happen through write_note: pass the old name as
   ` + "`" + `previous_filename` + "`" + ` together with the new ` + "`" + `filename` + "`" + `.
5. **Concurrent edits:** read_note returns a ` + "`" + `checksum` + "`" + `; pass it as
   ` + "`" + `if_match` + "`" + ` on write_note to fail instead of overwriting someone
   else's change.
6. **Folders are backend-defined.** Depending on the active storage the
   folder locator may be a plain path or a ` + "`" + `content://` + "`" + ` handle; the flat
   key-value backend has no folders at all.
`
