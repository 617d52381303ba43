package extraction

// ExtractionPrompt is sent with every page image.
const ExtractionPrompt = `You are an expert invoice data extraction agent. Carefully analyze the invoice image and extract every piece of information visible.

Return ONLY a valid JSON object. Do not add markdown, explanations or code fences.

Use this exact structure (set missing fields to null, not an empty string):

{
    "vendor_name": "string",
    "vendor_address": "string",
    "vendor_email": "string",
    "vendor_phone": "string",
    "vendor_tax_id": "string",
    "client_name": "string",
    "client_address": "string",
    "client_email": "string",
    "invoice_number": "string",
    "invoice_date": "YYYY-MM-DD",
    "due_date": "YYYY-MM-DD",
    "purchase_order_number": "string",
    "currency": "3-letter ISO code e.g. USD",
    "line_items": [
        {
            "description": "string",
            "quantity": number,
            "unit_price": number,
            "total": number
        }
    ],
    "subtotal": number,
    "tax_rate": number,
    "tax_amount": number,
    "discount": number,
    "shipping": number,
    "total_amount": number,
    "payment_terms": "string",
    "payment_method": "string",
    "bank_account": "string",
    "notes": "string"
}

Rules:
- All monetary values must be plain numbers (no currency symbols or thousands separators).
- Dates must be in YYYY-MM-DD format when possible; keep the original text if ambiguous.
- If a field is not present, use null.
- Do NOT invent or guess data that is not in the image.`

// MergePrompt precedes the JSON array of per-page extractions.
const MergePrompt = `You are given JSON extracted from multiple pages of the same invoice.
Merge them into a single coherent JSON object using the same field names.

Rules:
- For every field except line_items, prefer the value from the later page when pages disagree.
- For line_items, combine the items from every page in page order. Never drop or deduplicate items.

Return ONLY the merged JSON object with no explanation.`

// mergeRequest builds the text sent to the model for a multi-page merge
func mergeRequest(pagesJSON []byte) string {
	return MergePrompt + "\n\nPages JSON:\n" + string(pagesJSON)
}
