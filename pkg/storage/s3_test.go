package storage

import "testing"

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "upload url round trip",
			url:  "https://schoolgate-receipts.s3.us-east-1.amazonaws.com/" + ReceiptKey(14, 3, "receipt.pdf"),
			want: "receipts/14/3/receipt.pdf",
		},
		{
			name: "attachment key",
			url:  "https://schoolgate-attachments.s3.eu-west-1.amazonaws.com/attachments/2/9/photo.png",
			want: "attachments/2/9/photo.png",
		},
		{
			name: "non-aws host falls back to path",
			url:  "https://minio.local/bucket/receipts/1/2/a.jpg",
			want: "bucket/receipts/1/2/a.jpg",
		},
		{
			name: "no path",
			url:  "https://example.com",
			want: "",
		},
		{
			name: "empty",
			url:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFromURL(tt.url); got != tt.want {
				t.Fatalf("KeyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestValidateUploadType(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        bool
	}{
		{"image/png", "receipt.png", true},
		{"application/pdf", "receipt.pdf", true},
		{"", "receipt.jpeg", true},
		{"text/html", "receipt.html", false},
		{"", "receipt.exe", false},
	}
	for _, tt := range tests {
		if got := ValidateUploadType(tt.contentType, tt.filename); got != tt.want {
			t.Errorf("ValidateUploadType(%q, %q) = %v, want %v", tt.contentType, tt.filename, got, tt.want)
		}
	}
}
