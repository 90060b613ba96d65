// Package server exposes the download Manager as a JSON HTTP API built on
// gin.
//
// A successful POST /generate answers:
//
//	{
//	  "status": "success",
//	  "message": "PDF generated",
//	  "data": {
//	    "document_path": "temp/img/12345.pdf",
//	    "download_url": "http://localhost:5000/download/12345.pdf",
//	    "pages": 3,
//	    "cached": false
//	  }
//	}
//
// Failures answer with the HTTP status of the error kind:
//
//	{"status": "error", "error_code": 1001, "message": "...", "solution": "..."}
//
// Codes: 1000 bad request, 1001 access denied (403), 1002 not found (404),
// 1003 rate limited (429), 1004 protocol error, 1005 empty album,
// 1006 unreadable page, 9999 anything else (500).
package server
