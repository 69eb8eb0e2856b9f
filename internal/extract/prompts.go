package extract

// systemText is the shared system prompt for field extraction. It is
// cache-controlled: every extraction call in a run reuses it.
const systemText = `You are a research analyst extracting structured company data from web content. For each requested field return a JSON object entry {"value": <string or null>, "confidence": <0.0-1.0>}. For list fields return {"values": [<strings>], "confidence": <0.0-1.0>}. For link fields return {"values": {"<platform>": "<url>"}, "confidence": <0.0-1.0>}. Use null or "not found" when the content does not state the field. Return only valid JSON, no commentary.`

const fieldPrompt = `Extract the following fields about the company %q from this content.

Fields:
%s
Source URL: %s
Content:
%s

Return one JSON object keyed by field name, exactly the fields listed above.`

// namesSystemText is the system prompt for competitor-name generation.
const namesSystemText = `You are a market researcher. From the provided search content, list the names of distinct companies that offer the product or service in question. Exclude generic terms, directories, and publications. Return only a JSON array of company name strings.`

const namesPrompt = `Product/service: %s

Content:
%s

Return a JSON array of company names mentioned as providers. Return [] if none.`
