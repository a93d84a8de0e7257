/*
Package trivy parses Trivy JSON vulnerability reports into normalized
vulnerability and license records.

# Basic Usage

Parse a report file:

	parser := trivy.NewParser(nil)
	doc, err := parser.ParseFile("report.json")
	if err != nil {
		log.Fatal(err)
	}

Parse from bytes or reader:

	doc, err := parser.ParseBytes(data)
	doc, err := parser.Parse(reader)

# Parser Options

Configure parser behavior with Options:

	opts := &trivy.Options{
		MinSeverity:    "HIGH", // Drop findings below this severity
		MaxFindings:    1000,   // Cap the number of records
		IncludeUnfixed: false,  // Drop findings without a fixed version
	}
	parser := trivy.NewParser(opts)

# Working with Documents

Count records by severity:

	counts := trivy.CountBySeverity(doc)
	fmt.Printf("Critical: %d, High: %d\n", counts["CRITICAL"], counts["HIGH"])

# Tolerant Parsing

Result blocks without vulnerability or license lists yield zero records
rather than errors. Records missing a severity carry the "UNKNOWN"
sentinel. Only malformed top-level JSON and unsupported schema versions
are hard errors:

	trivy.ErrInvalidReport     - The input is not valid JSON
	trivy.ErrUnsupportedSchema - The report schema version is not supported
*/
package trivy
