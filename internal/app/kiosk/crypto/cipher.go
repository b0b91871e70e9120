package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize   = 16
	secretSize = 32
	keySize    = 32

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// PayloadCipher шифрует содержимое отзывов перед записью в локальную базу.
// Киоск стоит в общедоступном месте, поэтому персональные данные пациентов
// не хранятся на диске в открытом виде.
type PayloadCipher struct {
	aead cipher.AEAD
}

// NewPayloadCipher загружает ключ устройства из файла или создает новый.
// Файл содержит соль и секрет; ключ шифрования выводится через scrypt.
func NewPayloadCipher(keyPath string) (*PayloadCipher, error) {
	material, err := loadOrCreateKeyFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки ключа устройства: %w", err)
	}

	salt := material[:saltSize]
	secret := material[saltSize:]

	key, err := scrypt.Key(secret, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("ошибка вывода ключа: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации шифра: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации GCM: %w", err)
	}

	return &PayloadCipher{aead: aead}, nil
}

// Encrypt шифрует данные; nonce добавляется в начало результата
func (c *PayloadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt расшифровывает данные, зашифрованные Encrypt
func (c *PayloadCipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) < c.aead.NonceSize() {
		return nil, fmt.Errorf("данные короче nonce")
	}

	nonce := data[:c.aead.NonceSize()]
	ciphertext := data[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка расшифровки: %w", err)
	}

	return plaintext, nil
}

func loadOrCreateKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != saltSize+secretSize {
			return nil, fmt.Errorf("файл ключа поврежден: неверный размер %d", len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	material := make([]byte, saltSize+secretSize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("ошибка генерации ключа: %w", err)
	}

	if err := os.WriteFile(path, material, 0600); err != nil {
		return nil, fmt.Errorf("ошибка сохранения ключа: %w", err)
	}

	return material, nil
}
