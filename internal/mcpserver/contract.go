package mcpserver

// RS3FormatContract describes the rs3 document format accepted by
// add_document, update_document and convert_document.
const RS3FormatContract = `# rs3 Document Format

An rs3 file is an XML serialization of a rhetorical structure tree.
Documents that do not follow these rules are rejected on import.

## Structure

` + "```" + `xml
<rst>
  <header>
    <relations>
      <rel name="elaboration" type="rst"/>
      <rel name="joint" type="multinuc"/>
    </relations>
  </header>
  <body>
    <segment id="1" parent="3" relname="elaboration">First clause,</segment>
    <segment id="2" parent="3" relname="span">second clause.</segment>
    <group id="3" type="span"/>
  </body>
</rst>
` + "```" + `

## Rules

1. The root element is ` + "`" + `<rst>` + "`" + ` with a ` + "`" + `<header>` + "`" + ` and a ` + "`" + `<body>` + "`" + `.
2. The body contains at least one ` + "`" + `<segment>` + "`" + ` (an elementary discourse unit).
3. Every ` + "`" + `<segment>` + "`" + ` and ` + "`" + `<group>` + "`" + ` has an ` + "`" + `id` + "`" + ` that is unique in the document.
4. A ` + "`" + `parent` + "`" + ` attribute must name the id of another segment or group.
   Nodes without a parent are roots.
5. A ` + "`" + `relname` + "`" + ` is either ` + "`" + `span` + "`" + ` or a relation declared in
   ` + "`" + `<header><relations>` + "`" + `. Relation types are ` + "`" + `rst` + "`" + ` (nucleus-satellite)
   or ` + "`" + `multinuc` + "`" + ` (multi-nuclear).
6. Encoding is UTF-8.

## Names

- Project and file names are plain names: no ` + "`" + `/` + "`" + ` or ` + "`" + `\` + "`" + `, not ` + "`" + `.` + "`" + ` or ` + "`" + `..` + "`" + `.
- File names conventionally end with ` + "`" + `.rs3` + "`" + `.
- The convert scratch project ` + "`" + `_temp_convert` + "`" + ` and names of the form ` + "`" + `_temp_convert-<id>` + "`" + ` are reserved and rejected as invalid names.
`
